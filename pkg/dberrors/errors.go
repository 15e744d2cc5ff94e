package dberrors

import "errors"

var (
	ErrNotFound          = errors.New("rangedb: not found")
	ErrClosed            = errors.New("rangedb: closed")
	ErrInvalidArgument   = errors.New("rangedb: invalid argument")
	ErrRangesOverlap     = errors.New("rangedb: partition key ranges overlap")
	ErrRoutingIncomplete = errors.New("rangedb: routing map incomplete")
	ErrStaleRoutingMap   = errors.New("rangedb: stale routing map")
)
