package clusterlib_test

import (
	"testing"
	"time"

	"github.com/clusterlib/clusterlib/pkg/clusterlib"
	"github.com/clusterlib/clusterlib/pkg/key"
	"github.com/stretchr/testify/require"
)

func TestClientReceivesDeletedEventOnApplicationRemoval(t *testing.T) {
	f := newTestFactory(t)
	client := clusterlib.NewClient(f)
	t.Cleanup(client.Close)

	app, err := f.Root().Application("observed", true)
	require.NoError(t, err)

	events := make(chan clusterlib.UserEventPayload, 4)
	client.RegisterHandler(app.Key(), func(p clusterlib.UserEventPayload) { events <- p })

	// Drive a deletion so the NOTIFYABLE_STATE watch has something to
	// fire on; the handler table's exists-watch was armed when the
	// Application was first loaded above.
	require.NoError(t, app.Remove(false))

	select {
	case p := <-events:
		require.Equal(t, app.Key(), p.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not observe the DELETED event")
	}
}

func TestClientEndEventFiresOnFactoryShutdown(t *testing.T) {
	f := newTestFactory(t)
	client := clusterlib.NewClient(f)

	done := make(chan struct{})
	client.RegisterHandler(key.Root, func(p clusterlib.UserEventPayload) {
		if p.Event == clusterlib.SemEndEvent {
			close(done)
		}
	})

	f.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not observe ENDEVENT on shutdown")
	}
	client.Wait()
}
