package metrics

const namespace = "persistcache"

// CacheMetrics collects persistent cache metrics. It implements metrics
// interfaces of writebatch, blobstore, storage and remote packages.
type CacheMetrics struct {
	writeBatchMetrics
	storeMetrics
	storageMetrics
	serverMetrics
}

// NewCacheMetrics registers cache metrics in the default Prometheus
// registerer. MUST be called once per process.
func NewCacheMetrics(version string) *CacheMetrics {
	registerVersionMetric(namespace, version)

	writeBatch := newWriteBatchMetrics()
	writeBatch.register()

	store := newStoreMetrics()
	store.register()

	st := newStorageMetrics()
	st.register()

	srv := newServerMetrics()
	srv.register()

	return &CacheMetrics{
		writeBatchMetrics: writeBatch,
		storeMetrics:      store,
		storageMetrics:    st,
		serverMetrics:     srv,
	}
}
