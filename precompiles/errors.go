package precompiles

import "errors"

var errTooShort = errors.New("input shorter than a 4-byte method selector")
var errVoutOutOfRange = errors.New("vout index out of range for referenced transaction")
var errSatNotFound = errors.New("target sat offset exceeds total input value")
