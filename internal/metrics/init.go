package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Discovery skip reasons ---
	for _, reason := range []string{"unsupported", "unanchored", "unmodified", "walk_error"} {
		DiscoverySkippedTotal.WithLabelValues(reason)
	}

	// --- State store operations ---
	for _, op := range []string{"initialize_schema", "load_inventory", "load_completed",
		"merge_inventory", "mark_completed", "load_checkpoint", "set_checkpoint"} {
		StoreQueryTotal.WithLabelValues(op, "success")
		StoreQueryTotal.WithLabelValues(op, "error")
		StoreQueryDuration.WithLabelValues(op)
	}

	// --- Annotation providers ---
	for _, provider := range []string{"gemini", "mistral"} {
		AnnotateRequestsTotal.WithLabelValues(provider, "success")
		AnnotateRequestsTotal.WithLabelValues(provider, "error")
		AnnotateDuration.WithLabelValues(provider)
	}

	// --- Metadata writes by format ---
	for _, format := range []string{"jpeg", "png", "heic", "unknown"} {
		MetadataWritesTotal.WithLabelValues(format, "success")
		MetadataWritesTotal.WithLabelValues(format, "error")
		MetadataWritesTotal.WithLabelValues(format, "unsupported")
	}

	// --- Batch outcomes ---
	for _, result := range []string{"succeeded", "failed_annotate", "failed_write"} {
		BatchItemsTotal.WithLabelValues(result)
	}
}
