package session

import "errors"

var ErrSessionExists = errors.New("import session already exists")
