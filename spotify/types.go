package spotify

// TrackRow is one normalised item of the top tracks response.
type TrackRow struct {
	ArtistsName string `parquet:"artists_name" json:"artists_name"`
	TrackName   string `parquet:"track_name" json:"track_name"`
	TrackID     string `parquet:"track_id" json:"track_id"`
	Popularity  int64  `parquet:"popularity" json:"popularity"`
}

// AudioFeatureRow holds the feature document for one track as compact JSON.
type AudioFeatureRow struct {
	TrackID  string `parquet:"track_id" json:"track_id"`
	Document string `parquet:"document" json:"document"`
}

// topTracksResponse is the subset of GET /me/top/tracks that is normalised.
type topTracksResponse struct {
	Items []struct {
		Name       string `json:"name"`
		ID         string `json:"id"`
		Popularity int64  `json:"popularity"`
		Artists    []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"items"`
}
