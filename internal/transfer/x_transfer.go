package transfer

type CreatePostRequest struct {
	Text  string     `json:"text"`
	Media *PostMedia `json:"media,omitempty"`
	Poll  *PostPoll  `json:"poll,omitempty"`
	Reply *PostReply `json:"reply,omitempty"`
}

type PostMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type PostPoll struct {
	Options         []string `json:"options"`
	DurationMinutes int      `json:"duration_minutes"`
}

type PostReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type CreatePostResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type MediaUploadResponse struct {
	MediaID          int64           `json:"media_id"`
	MediaIDString    string          `json:"media_id_string"`
	ExpiresAfterSecs int             `json:"expires_after_secs"`
	ProcessingInfo   *ProcessingInfo `json:"processing_info,omitempty"`
}

type ProcessingInfo struct {
	State           string `json:"state"` // pending, in_progress, succeeded, failed
	CheckAfterSecs  int    `json:"check_after_secs"`
	ProgressPercent int    `json:"progress_percent"`
	Error           *struct {
		Code    int    `json:"code"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type MediaMetadataRequest struct {
	MediaID string       `json:"media_id"`
	AltText AltTextField `json:"alt_text"`
}

type AltTextField struct {
	Text string `json:"text"`
}
