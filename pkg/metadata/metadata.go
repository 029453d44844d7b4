package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gcemetadata "cloud.google.com/go/compute/metadata"
)

const (
	keyInterfaceIP = "instance/network-interfaces/%d/ip"
)

var (
	ErrNotFound            = errors.New("metadata key not found")
	ErrUnreachableEndpoint = errors.New("metadata endpoint unreachable")
	ErrBadResponse         = errors.New("unexpected metadata response")
)

// metadataAPI is the subset of the GCE metadata client used here. The
// client owns the base URL, the Metadata-Flavor header and the
// GCE_METADATA_HOST override, and retries 5xx responses before giving up.
type metadataAPI interface {
	GetWithContext(ctx context.Context, suffix string) (string, error)
}

type Client interface {
	GetMetadataValue(ctx context.Context, path string) (string, error)
	GetInstanceAddress(ctx context.Context, interfaceIndex int) (string, error)
}

func NewClient() Client {
	return &client{
		api: gcemetadata.NewClient(&http.Client{}),
	}
}

type client struct {
	api metadataAPI
}

func (c *client) GetMetadataValue(ctx context.Context, path string) (string, error) {
	value, err := c.api.GetWithContext(ctx, path)
	if err != nil {
		var notDefined gcemetadata.NotDefinedError
		if errors.As(err, &notDefined) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		var respErr *gcemetadata.Error
		if errors.As(err, &respErr) {
			return "", fmt.Errorf("%w: status %d for %s: %w", ErrBadResponse, respErr.Code, path, err)
		}
		return "", fmt.Errorf("%w: unable to get %s: %w", ErrUnreachableEndpoint, path, err)
	}
	return strings.TrimSpace(value), nil
}

func (c *client) GetInstanceAddress(ctx context.Context, interfaceIndex int) (string, error) {
	address, err := c.GetMetadataValue(ctx, InterfaceIPKey(interfaceIndex))
	if err != nil {
		return "", fmt.Errorf("error getting instance address from metadata: %w", err)
	}
	return address, nil
}

// InterfaceIPKey returns the metadata key holding the primary internal IP
// of the network interface at index.
func InterfaceIPKey(index int) string {
	return fmt.Sprintf(keyInterfaceIP, index)
}
