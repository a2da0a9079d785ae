package engine

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/nuvex/nuvex/storage/engine")
