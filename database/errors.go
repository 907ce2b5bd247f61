package database

import "errors"

var (
	ErrNotFound           = errors.New("record not found")
	ErrUnsupportedDBType  = errors.New("unsupported database type")
	ErrAlreadyDistributed = errors.New("asset already distributed")
	ErrDuplicateTxHash    = errors.New("tx hash already recorded")
)
