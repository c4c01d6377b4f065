package synth

import "errors"

// ErrTargetUnparsable is returned by Merge when the accumulated target itself
// does not parse. Unlike fragment failures it is never recovered.
var ErrTargetUnparsable = errors.New("synth: target does not parse")

var errNotBlock = errors.New("synth: text is not a brace block")
