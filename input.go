/*
Copyright (C) 2013-2014 Regents of the University of Minnesota.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package orchestra

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/url"

	"github.com/spatialmodel/orchestra/cloud"
)

// LoadInputText resolves fileID -- a 'provider://bucket/key' URI, per
// cloud.OpenBucket's accepted schemes ("file", "gs", "s3") -- and
// returns its contents as text, for Calculator.FromInput (spec.md §6:
// Calculator::from_input). This is the "file-IO facade" spec.md §1
// names as an external collaborator, wired here onto the teacher's own
// cloud bucket helper (see cloud/bucket.go) rather than reinvented.
func LoadInputText(fileID string) (string, error) {
	u, err := url.Parse(fileID)
	if err != nil {
		return "", &ReadError{Msg: fmt.Sprintf("invalid input fileID %q: %v", fileID, err)}
	}

	ctx := context.Background()
	bucketURI := fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	b, err := cloud.OpenBucket(ctx, bucketURI)
	if err != nil {
		return "", &ReadError{Msg: fmt.Sprintf("opening bucket for %q: %v", fileID, err)}
	}
	key := u.Path
	if len(key) > 0 && key[0] == '/' {
		key = key[1:]
	}
	r, err := b.NewReader(ctx, key, nil)
	if err != nil {
		return "", &ReadError{Msg: fmt.Sprintf("reading %q: %v", fileID, err)}
	}
	defer r.Close()

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return "", &ReadError{Msg: fmt.Sprintf("reading %q: %v", fileID, err)}
	}
	return string(data), nil
}
