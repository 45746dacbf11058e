package api

// Worker ids travel as decimal strings; they use the full uint64 range.

// StartRequest is the body of POST /workers.
type StartRequest struct {
	Origin   string   `json:"origin"` // base64 encoded PNG, JPEG, GIF or WebP
	Hashtags []string `json:"hashtags"`
	// TileSize is [width, height]; omitted picks the default for the origin.
	TileSize     []uint32 `json:"tile_size,omitempty"`
	BlockedUsers []string `json:"blocked_users,omitempty"`
}

// StartResponse is returned with 201 Created.
type StartResponse struct {
	ID string `json:"id"`
}

// ListResponse is the body of GET /workers.
type ListResponse struct {
	IDs []string `json:"ids"`
}

// ArtResponse is the body of GET /workers/{id}.
type ArtResponse struct {
	ID         string      `json:"id"`
	Snapshot   uint64      `json:"snapshot"`
	MosaicArt  string      `json:"mosaic_art"` // base64 encoded PNG
	PiecePosts []PiecePost `json:"piece_posts"`
	Hashtags   []string    `json:"hashtags"`
	TileSize   []uint32    `json:"tile_size"` // [width, height]
	Filled     bool        `json:"filled"`
	Slots      int         `json:"slots"`
	Empty      int         `json:"empty"`
	Running    bool        `json:"running"`
	Error      string      `json:"error,omitempty"`
}

// PiecePost attributes one tile. PostID is empty for direct posts.
type PiecePost struct {
	PostID   string `json:"post_id,omitempty"`
	UserName string `json:"user_name"`
	Hashtag  string `json:"hashtag"`
}

// PostRequest is the body of POST /workers/{id}/posts. The image must be
// exactly tile sized.
type PostRequest struct {
	Image    string `json:"image"`
	UserName string `json:"user_name"`
	Hashtag  string `json:"hashtag"`
}

// BlockRequest is the body of POST /workers/{id}/blocked.
type BlockRequest struct {
	UserName string `json:"user_name"`
}

// ErrorResponse is returned with every 4xx and 5xx status.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
