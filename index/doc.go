// Package index holds the embedded documents of the latest successful build
// and answers cosine nearest-neighbour queries over them.
//
// A Build embeds documents in batches on a worker pool, retrying each batch
// with exponential backoff. The finished snapshot is persisted (when a store
// is configured) and then swapped in atomically, so queries never observe a
// partial build and a failed build leaves the previous snapshot serving.
//
//	idx, err := index.New(provider.Embedder(), provider.EmbeddingModelVersion(),
//	    index.WithBatchSize(64),
//	    index.WithStore(stores.Snapshots),
//	)
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	if err := idx.Build(ctx, docs); err != nil {
//	    return err
//	}
//	results, err := idx.Query(ctx, "soybean farming CO2 factor", 4)
package index
