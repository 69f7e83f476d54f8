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

import "github.com/sirupsen/logrus"

// Logger is an alias of logrus.FieldLogger, the logger interface this package depends on,
// matching the field-logger-on-a-long-lived-struct idiom used throughout
// the teacher repository (e.g. emissions/slca/eieio.Server.Log).
type Logger = logrus.FieldLogger

var std = logrus.StandardLogger()

// defaultLogger returns the package-wide logrus logger used by types
// that don't have one injected explicitly.
func defaultLogger() Logger { return std }

// SetLogger replaces the package-wide default logger, letting a calling
// application route orchestra's log output through its own logrus
// instance/hooks.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		std = l
	}
}
