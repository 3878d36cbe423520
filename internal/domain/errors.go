package domain

import "errors"

var (
	// ErrDecode is returned when an envelope or the document inside it cannot be decoded.
	ErrDecode = errors.New("decode failed")
	// ErrValidation is returned for structurally invalid quiz datasets.
	ErrValidation = errors.New("invalid quiz dataset")
	// ErrUnknownPolicy indicates a payout policy tag outside the closed set.
	ErrUnknownPolicy = errors.New("unknown payout policy")
	// ErrUnknownDifficulty indicates a difficulty tag outside the closed set.
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	// ErrUnknownOption indicates an option label other than A-D.
	ErrUnknownOption = errors.New("unknown option label")
	// ErrRecordNotFound indicates no settlement has been archived for a quiz.
	ErrRecordNotFound = errors.New("settlement record not found")
)
