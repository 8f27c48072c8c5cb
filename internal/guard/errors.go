package guard

import (
	"errors"
	"fmt"
)

var (
	// ErrWalletKeyRequired is returned when an operation is called without a wallet key
	ErrWalletKeyRequired = errors.New("Public key is required")

	// ErrInvalidAmount is returned for a missing, zero or negative amount
	ErrInvalidAmount = errors.New("Amount must be greater than zero")

	// ErrRecipientRequired is returned when a transfer has no recipient
	ErrRecipientRequired = errors.New("Recipient and amount are required")

	// ErrContactNameRequired is returned when a contact operation has no name
	ErrContactNameRequired = errors.New("Contact name is required")

	// ErrContactAddressRequired is returned when adding a contact without an address
	ErrContactAddressRequired = errors.New("Contact name and address are required")

	// ErrEmergencyContactRequired is returned when emergency_freeze has no contact
	ErrEmergencyContactRequired = errors.New("Emergency contact is required")

	// ErrSettingsRequired is returned when update_settings has no settings body
	ErrSettingsRequired = errors.New("Settings are required")

	// ErrReservationIDRequired is returned when a release names no reservation
	ErrReservationIDRequired = errors.New("Reservation ID is required")

	// ErrUnauthorizedEmergencyContact is returned when the caller is not the wallet's emergency contact
	ErrUnauthorizedEmergencyContact = errors.New("Unauthorized emergency contact")

	// ErrContactNotFound matches every ContactNotFoundError
	ErrContactNotFound = errors.New("contact not found")
)

// ContactNotFoundError names the contact that was looked up.
type ContactNotFoundError struct {
	Name string
}

func (e *ContactNotFoundError) Error() string {
	return fmt.Sprintf("Contact %q not found", e.Name)
}

func (e *ContactNotFoundError) Is(target error) bool {
	return target == ErrContactNotFound
}

// IsInputError reports whether err is caused by a malformed request rather
// than a storage failure.
func IsInputError(err error) bool {
	for _, e := range []error{
		ErrWalletKeyRequired, ErrInvalidAmount, ErrRecipientRequired,
		ErrContactNameRequired, ErrContactAddressRequired, ErrEmergencyContactRequired,
		ErrSettingsRequired, ErrReservationIDRequired,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
