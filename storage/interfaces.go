package storage

import "car-price-estimator/models"

// ListingWriter is the interface any cleaned-listing backend must satisfy.
type ListingWriter interface {
	Write(listings []*models.Listing) error
	Close() error
}

// ListingSource provides previously stored listings.
type ListingSource interface {
	FetchAll() ([]*models.Listing, error)
}
