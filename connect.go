package thermalcapture

import (
	"context"
	"fmt"
	"log/slog"
)

// ConnectCamera authenticates with and connects to the camera described by
// identity.
//
// A non-approved authentication status is not an error by itself: some
// cameras require the certificate to be approved in their UI, and the
// subsequent connect reports the definitive outcome. A connect rejected with
// an invalid login emits a security audit record before the error surfaces.
//
// onDisconnect, if non-nil, is invoked once from a camera-owned goroutine if
// the established connection is lost unexpectedly.
func ConnectCamera(ctx context.Context, camera Camera, identity Identity, clientName string, onDisconnect func(error)) error {
	status, err := camera.Authenticate(ctx, clientName)
	if err != nil {
		return fmt.Errorf("thermal-capture: authenticate with %s: %w", identity, err)
	}
	if status != AuthApproved {
		slog.Warn("connect: camera has not approved this client yet",
			"identity", identity.String(),
			"status", status.String(),
		)
	}

	if err := camera.Connect(ctx, identity, onDisconnect); err != nil {
		if ErrorCondition(err) == CondInvalidLogin {
			auditInvalidLogin(identity)
		}
		return fmt.Errorf("thermal-capture: connect to %s: %w", identity, err)
	}

	slog.Info("connect: camera connected", "identity", identity.String())
	return nil
}

// FindStream returns the first stream matching the wanted kind, or an error
// when the camera offers none.
func FindStream(camera Camera, thermal bool) (Stream, error) {
	for _, stream := range camera.Streams() {
		if stream.IsThermal() == thermal {
			return stream, nil
		}
	}
	kind := "thermal"
	if !thermal {
		kind = "colorized"
	}
	return nil, fmt.Errorf("thermal-capture: camera does not support %s streaming", kind)
}
