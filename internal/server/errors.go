package server

import "errors"

var errBucketMissing = errors.New("reference cache bucket does not exist")
