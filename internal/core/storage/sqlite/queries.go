package sqlite

// SQL queries for keyword counter operations.

const (
	// queryIncrementKeyword is the single atomic insert-or-update for one
	// keyword mention. First sight inserts count 1; every subsequent mention
	// adds exactly 1. The upsert keeps sequential and concurrent increments
	// for the same keyword from ever losing an update.
	queryIncrementKeyword = `
		INSERT INTO keyword_counts (keyword, count)
		VALUES (?, 1)
		ON CONFLICT(keyword) DO UPDATE SET count = count + 1
	`

	// queryResetCounts empties the counter table. The schema itself is owned
	// by migrations; reset only drops the rows, so it stays idempotent.
	queryResetCounts = `
		DELETE FROM keyword_counts
	`

	// queryGetCount reads one keyword's count. No row means the keyword is
	// unseen; the adapter maps that to 0.
	queryGetCount = `
		SELECT count FROM keyword_counts WHERE keyword = ?
	`

	// queryGetAllCounts reads the full mapping, ordered for stable output.
	queryGetAllCounts = `
		SELECT keyword, count FROM keyword_counts ORDER BY keyword ASC
	`
)
