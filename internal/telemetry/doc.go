// Package telemetry exports quotelearn traces and OTel metrics over OTLP.
//
// The learning coordinator opens spans per finalized quote (learning.process
// with learning.extract, learning.update_profile and learning.update_dna
// children) and per read (learning.select_relevant, learning.get_confidence).
// Prometheus metrics are served separately by the metrics package.
//
//	telemetry:
//	  enabled: true
//	  endpoint: "otel-collector:4317"
//	  protocol: grpc            # or http/protobuf
//	  insecure: false
//	  sampling:
//	    rate: 0.25
//	  metrics:
//	    enabled: true
//	    export_interval: "15s"
//
// Provider failures never stop the daemon: Health reports the instance as
// degraded and Tracer falls back to the global provider.
//
// In tests, NewTestTelemetry records spans in memory:
//
//	tt := telemetry.NewTestTelemetry()
//	c, _ := learning.New(cfg, st, nil, nil, logger, learning.WithTracer(tt.Tracer("test")))
//	c.Process(ctx, q)
//	tt.AssertSpanExists(t, "learning.process")
package telemetry
