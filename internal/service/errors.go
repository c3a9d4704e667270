package service

import "errors"

var (
	// ErrBagLocked: the cutoff passed, the bag can no longer be edited.
	ErrBagLocked = errors.New("weekly bag is locked for edits")

	// ErrInvalidBoxSize: the selected box size is not in the catalog.
	ErrInvalidBoxSize = errors.New("invalid box size")

	// ErrMissingSessionID: a verification call arrived without a session id.
	ErrMissingSessionID = errors.New("missing session id")

	// ErrInvalidSignature: webhook signature verification failed.
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// ErrInvalidItemType: bag items are either box contents or add-ons.
	ErrInvalidItemType = errors.New("invalid item type")
)
