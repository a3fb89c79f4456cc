package transfer

type RegisterAccountRequest struct {
	Username     string `json:"username"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type ConnectAccountRequest struct {
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier"`
	RedirectURI  string `json:"redirect_uri"`
}

type PublishResponse struct {
	Status   string   `json:"status"`
	TweetIDs []string `json:"tweet_ids,omitempty"`
	Error    string   `json:"error,omitempty"`
}
