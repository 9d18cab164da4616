// Package bootstrap assembles a faultkit application: it loads and
// validates config, initializes logging, owns the component and guard
// registries, and runs the startup/shutdown lifecycle with signal
// handling.
//
// The App is the composition root the rest of the system expects: guards
// are looked up through App.Guards rather than any package-level state.
package bootstrap
