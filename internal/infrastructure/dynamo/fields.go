package dynamo

// DynamoDB attribute names used in key, condition and update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID    = "user_id"
	fieldUniqueKey = "unique_key"
	fieldTitleID   = "title_id"
	fieldAuthorID  = "author_id"
	fieldReviewID  = "review_id"
	fieldCommentID = "comment_id"
	fieldUpdatedAt = "updated_at"

	// Lower-cased copy of username, written on every put, for case-insensitive search.
	fieldUsernameSearch = "username_search"
)

// Secondary index names.
const (
	indexReviewID = "review_id-index"
)
