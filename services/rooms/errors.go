package rooms

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	ErrNameTaken        = errors.New("display name already taken in this room")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrRoomCreateRace   = errors.New("room created concurrently")
	ErrStoreUnavailable = errors.New("room store unavailable")
	ErrRoomNotFound     = errors.New("room not found")
	ErrNotMember        = errors.New("not a member of this room")
	ErrInvalidCode      = errors.New("room code must be 4 to 6 letters or digits")
	ErrInvalidName      = errors.New("invalid display name")
	ErrInvalidIdentity  = errors.New("invalid identity")
	ErrInvalidVariant   = errors.New("unknown game variant")

	// compare-and-set on the roster version lost, retried internally
	errVersionConflict = errors.New("roster version conflict")
)

// domain errors pass through, anything else coming out of the store means the
// store itself is in trouble.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRoomNotFound
	case errors.Is(err, ErrNameTaken),
		errors.Is(err, ErrNotAuthorized),
		errors.Is(err, ErrRoomNotFound),
		errors.Is(err, ErrNotMember),
		errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidIdentity),
		errors.Is(err, ErrInvalidVariant),
		errors.Is(err, ErrStoreUnavailable):
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// isDuplicate reports a unique constraint violation, translated by gorm or
// raw from lib/pq.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
