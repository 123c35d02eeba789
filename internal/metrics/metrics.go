// Package metrics exposes Prometheus collectors for the ingestion and
// query pipelines. Collectors register lazily on first use so importing
// the package costs nothing.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level metrics (registered once)
var (
	metricsOnce sync.Once

	documentsIngested *prometheus.CounterVec
	documentsDeleted  *prometheus.CounterVec
	documentsFailed   *prometheus.CounterVec
	chunksEmbedded    *prometheus.CounterVec
	chunksFailed      *prometheus.CounterVec
	embeddingBatches  prometheus.Counter
	embeddingRetries  prometheus.Counter
	backpressureHits  prometheus.Counter
	pendingChunks     prometheus.Gauge
	queryDuration     *prometheus.HistogramVec
	partialResults    prometheus.Counter
	indexRebuilds     *prometheus.CounterVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		documentsIngested = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieva_documents_ingested_total",
				Help: "Total documents accepted for ingestion per knowledge base",
			},
			[]string{"knowledge_base"},
		)

		documentsDeleted = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieva_documents_deleted_total",
				Help: "Total documents deleted per knowledge base",
			},
			[]string{"knowledge_base"},
		)

		documentsFailed = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieva_documents_failed_total",
				Help: "Total documents that ended in the failed state per knowledge base",
			},
			[]string{"knowledge_base"},
		)

		chunksEmbedded = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieva_chunks_embedded_total",
				Help: "Total chunks successfully embedded per knowledge base",
			},
			[]string{"knowledge_base"},
		)

		chunksFailed = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieva_chunks_failed_total",
				Help: "Total chunks that exhausted their embedding retry budget",
			},
			[]string{"knowledge_base"},
		)

		embeddingBatches = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieva_embedding_batches_total",
				Help: "Total embedding provider batch calls",
			},
		)

		embeddingRetries = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieva_embedding_retries_total",
				Help: "Total individual chunk embedding retries",
			},
		)

		backpressureHits = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieva_ingestion_backpressure_total",
				Help: "Total ingestion requests rejected because the pending queue was full",
			},
		)

		pendingChunks = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "retrieva_pending_chunks",
				Help: "Chunks currently waiting for embedding",
			},
		)

		queryDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieva_query_duration_seconds",
				Help:    "Hybrid query latency per knowledge base",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"knowledge_base"},
		)

		partialResults = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieva_query_partial_total",
				Help: "Total queries that returned a partial result set",
			},
		)

		indexRebuilds = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieva_index_rebuilds_total",
				Help: "Total index rebuilds per knowledge base",
			},
			[]string{"knowledge_base"},
		)
	})
}

// RecordDocumentIngested counts an accepted ingestion.
func RecordDocumentIngested(knowledgeBaseID string) {
	initMetrics()
	documentsIngested.WithLabelValues(knowledgeBaseID).Inc()
}

// RecordDocumentDeleted counts a document deletion.
func RecordDocumentDeleted(knowledgeBaseID string) {
	initMetrics()
	documentsDeleted.WithLabelValues(knowledgeBaseID).Inc()
}

// RecordDocumentFailed counts a document reaching the failed state.
func RecordDocumentFailed(knowledgeBaseID string) {
	initMetrics()
	documentsFailed.WithLabelValues(knowledgeBaseID).Inc()
}

// RecordChunkEmbedded counts a successfully embedded chunk.
func RecordChunkEmbedded(knowledgeBaseID string) {
	initMetrics()
	chunksEmbedded.WithLabelValues(knowledgeBaseID).Inc()
}

// RecordChunkFailed counts a chunk that exhausted its retry budget.
func RecordChunkFailed(knowledgeBaseID string) {
	initMetrics()
	chunksFailed.WithLabelValues(knowledgeBaseID).Inc()
}

// RecordEmbeddingBatch counts one provider batch call.
func RecordEmbeddingBatch() {
	initMetrics()
	embeddingBatches.Inc()
}

// RecordEmbeddingRetry counts one individual retry.
func RecordEmbeddingRetry() {
	initMetrics()
	embeddingRetries.Inc()
}

// RecordBackpressure counts a rejected ingestion.
func RecordBackpressure() {
	initMetrics()
	backpressureHits.Inc()
}

// SetPendingChunks reports the current embedding queue depth.
func SetPendingChunks(n int) {
	initMetrics()
	pendingChunks.Set(float64(n))
}

// ObserveQueryDuration records one query's latency in seconds.
func ObserveQueryDuration(knowledgeBaseID string, seconds float64) {
	initMetrics()
	queryDuration.WithLabelValues(knowledgeBaseID).Observe(seconds)
}

// RecordPartialResult counts a query answered with a shortened result set.
func RecordPartialResult() {
	initMetrics()
	partialResults.Inc()
}

// RecordIndexRebuild counts one knowledge base index rebuild.
func RecordIndexRebuild(knowledgeBaseID string) {
	initMetrics()
	indexRebuilds.WithLabelValues(knowledgeBaseID).Inc()
}
