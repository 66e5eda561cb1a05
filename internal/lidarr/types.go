package lidarr

// Artist is the nested artist object on album records.
type Artist struct {
	ID         int64  `json:"id"`
	ArtistName string `json:"artistName"`
}

// Album is one release record from the wanted-album source.
type Album struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	ReleaseDate    string `json:"releaseDate"`
	Monitored      bool   `json:"monitored"`
	ForeignAlbumID string `json:"foreignAlbumId"`
	Artist         Artist `json:"artist"`
}

// Track is one track record on an album.
type Track struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	TrackNumber string `json:"trackNumber"` // "5" or disc-qualified "1-05"
	HasFile     bool   `json:"hasFile"`
	Duration    int    `json:"duration"` // milliseconds
}

// wantedPage is the paged envelope wanted/missing returns.
type wantedPage struct {
	Page         int     `json:"page"`
	PageSize     int     `json:"pageSize"`
	TotalRecords int     `json:"totalRecords"`
	Records      []Album `json:"records"`
}
