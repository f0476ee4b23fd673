package metrics

// HTTPDurationBuckets defines latency buckets for HTTP request duration metrics.
var HTTPDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// CompletionDurationBuckets covers completion calls, which run far longer than plain HTTP handlers.
var CompletionDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60}

// ToolRoundBuckets counts completion rounds per turn.
var ToolRoundBuckets = []float64{1, 2, 3, 4, 5, 6, 8, 10}
