// SPDX-License-Identifier: MPL-2.0

// Package asyncserver provides a reusable start/stop lifecycle around a network
// listener whose bind outcome is reported asynchronously.
//
// A Server is constructed with a Factory and an optional base Config. Start
// resolves the base against a per-call override (override wins field by field),
// builds a fresh Listener, binds it and blocks until the listener reports either
// ready or failure. Stop closes the listener and returns the server to idle so
// it can be started again.
//
//	srv := asyncserver.New(httplistener.Factory(), &asyncserver.Config[http.Handler]{
//		Endpoint: asyncserver.PortEndpoint(8080),
//		Handler:  mux,
//	})
//	if _, err := srv.Start(ctx, nil); err != nil {
//		return err
//	}
//	defer srv.Stop(context.Background())
//
// Errors fall into three classes (see Classify): configuration errors from
// Resolve, sequencing errors from calling Start or Stop in the wrong state, and
// environment errors from the listener, which are returned unwrapped.
package asyncserver
