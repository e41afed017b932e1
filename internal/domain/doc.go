// Package domain holds the model types shared across layers and the
// interfaces the application core depends on. It has no dependencies on
// infrastructure packages; repositories and adapters implement these
// interfaces, the tracker consumes them.
package domain
