// Package core contains the call-session domain: the session registry, the
// function-call router, the finalizer and the contracts that backend
// connectors, room releasers and archives implement. Adapters depend on this
// package; core never imports a provider or transport package.
package core
