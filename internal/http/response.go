package http

import "rangedb/pkg/routing"

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Response is the envelope for KV operations.
type Response struct {
	Status Status `json:"status,omitempty"`
	Value  string `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewSuccessResponse() Response {
	return Response{Status: StatusSuccess}
}

func NewValueResponse(value string) Response {
	return Response{Status: StatusSuccess, Value: value}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}

// RouteResponse answers routing debug queries: which range owns a key and
// where it lives.
type RouteResponse struct {
	Status Status           `json:"status"`
	Range  routing.KeyRange `json:"range"`
	Target string           `json:"target,omitempty"`
}

// RoutingMapResponse dumps the current routing map.
type RoutingMapResponse struct {
	Status             Status             `json:"status"`
	CollectionUniqueID string             `json:"collectionUniqueId"`
	Ranges             []routing.KeyRange `json:"ranges"`
	Partitions         []string           `json:"partitions"`
}

// OverlappingResponse lists the ranges touched by a span query.
type OverlappingResponse struct {
	Status Status             `json:"status"`
	Ranges []routing.KeyRange `json:"ranges"`
}
