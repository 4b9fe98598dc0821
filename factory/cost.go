package factory

import (
	"github.com/ruteri/subaccount-factory/interfaces"
)

// StorageMarginBytes covers state the runtime allocates beyond the raw image.
const StorageMarginBytes = 5 * 1024

// MinimumEscrow returns the balance a new account must hold to keep an image of
// imageSize bytes alive: pricePerByte * (imageSize + StorageMarginBytes).
// It fails with interfaces.ErrAmountOverflow rather than wrapping.
func MinimumEscrow(imageSize int, pricePerByte interfaces.Amount) (interfaces.Amount, error) {
	return pricePerByte.Mul(interfaces.NewAmount(uint64(imageSize) + StorageMarginBytes))
}
