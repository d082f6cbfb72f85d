package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrNoStore is returned when no storefront identity can be resolved for a request
	ErrNoStore = errors.New("no store available; configure a Shopify store")

	// ErrSnapshotUnavailable is returned when the POS/ERP snapshot cannot be fetched
	ErrSnapshotUnavailable = errors.New("catalog snapshot unavailable")

	// ErrStorefrontAPIFailure is returned when a storefront GraphQL request fails
	ErrStorefrontAPIFailure = errors.New("storefront API request failed")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrPersistenceUnavailable is returned when the durable staging backend cannot serve a request
	ErrPersistenceUnavailable = errors.New("staging persistence unavailable")

	// ErrInvalidStatus is returned for an unknown staging status value
	ErrInvalidStatus = errors.New("invalid staging status")
)
