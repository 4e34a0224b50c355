package client

import (
	"context"
	"errors"

	"github.com/maxpoletaev/vaultnfs/message"
)

// EnsureAccount creates the account of the client, treating an existing
// account as success.
func EnsureAccount(ctx context.Context, c *Client, creation message.AccountCreation) error {
	_, err := c.CreateAccount(creation).Wait(ctx)
	if errors.Is(err, ErrAccountExists) {
		return nil
	}

	return err
}
