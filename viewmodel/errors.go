package viewmodel

import "errors"

var errUnknownTask = errors.New("task not in current snapshot")
