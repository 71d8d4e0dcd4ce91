package backend

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/dokzlo13/streamctl/internal/provider"
)

// Connector returns a provider connector that opens the sandbox at path
// and hands it out as the provider's client type.
func Connector[C io.Closer](path string) provider.Connector[C] {
	return func(ctx context.Context) (C, error) {
		var zero C
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		sb, err := Open(path)
		if err != nil {
			return zero, err
		}

		client, ok := any(sb).(C)
		if !ok {
			sb.Close()
			return zero, fmt.Errorf("sandbox does not implement %s", reflect.TypeFor[C]())
		}
		return client, nil
	}
}
