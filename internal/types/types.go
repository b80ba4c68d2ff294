package types

import "time"

// ReferenceRepliedTo marks the reference that links a reply to its parent post.
const ReferenceRepliedTo = "replied_to"

// MediaPhoto marks photo attachments, the only media kind we describe.
const MediaPhoto = "photo"

// Reference links a post to another post it relates to.
type Reference struct {
	Type   string `json:"type"` // e.g. "replied_to", "quoted"
	PostID string `json:"post_id"`
}

// Media is an attachment descriptor on a post.
type Media struct {
	Type string `json:"type"` // e.g. "photo", "video"
	URL  string `json:"url"`
}

// Post represents an ingested platform post. Raw engagement counters and the
// computed score are pointers because the ingestion collaborator may not have
// provided them; absence and zero mean different things here.
type Post struct {
	ID              string      `json:"id"`
	AuthorID        string      `json:"author_id"`
	Text            string      `json:"text"`
	CreatedAt       time.Time   `json:"created_at"`
	References      []Reference `json:"references,omitempty"`
	Media           []Media     `json:"media,omitempty"`
	Likes           *int        `json:"likes,omitempty"`
	Reshares        *int        `json:"reshares,omitempty"`
	Replies         *int        `json:"replies,omitempty"`
	EngagementScore *float64    `json:"engagement_score,omitempty"`
	ContextBuilt    bool        `json:"context_built"`
	ContextBuiltAt  *time.Time  `json:"context_built_at,omitempty"`
}

// RepliedTo returns the target of the first "replied_to" reference, or "" if
// the post is not a reply.
func (p *Post) RepliedTo() string {
	for _, r := range p.References {
		if r.Type == ReferenceRepliedTo {
			return r.PostID
		}
	}
	return ""
}

// PhotoURLs returns the URLs of photo attachments, in attachment order.
func (p *Post) PhotoURLs() []string {
	var urls []string
	for _, m := range p.Media {
		if m.Type == MediaPhoto {
			urls = append(urls, m.URL)
		}
	}
	return urls
}

// HasCounters reports whether at least one raw engagement counter is present.
func (p *Post) HasCounters() bool {
	return p.Likes != nil || p.Reshares != nil || p.Replies != nil
}

// Author represents an ingested platform account. Handles are matched
// case-insensitively everywhere.
type Author struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Handle      string    `json:"handle"`
	Followers   *int      `json:"followers,omitempty"`
	PostCount   *int      `json:"post_count,omitempty"`
	Prompt      string    `json:"prompt,omitempty"` // evolving notes maintained by the profiling collaborator
	LastFetched time.Time `json:"last_fetched"`
}

// RankedAuthor pairs an author with its computed priority score. The score is
// derived per ranking pass and never persisted.
type RankedAuthor struct {
	Author Author  `json:"author"`
	Score  float64 `json:"score"`
}

// ResponseRecord is the per-post record the assembler creates and downstream
// collaborators (generation, publishing) fill in. Response, Posted and
// ResponseID are owned by those collaborators: nil until they write them, and
// never overwritten by this core once set.
type ResponseRecord struct {
	PostID              string     `json:"post_id"`
	AuthorID            string     `json:"author_id"`
	Context             string     `json:"context"`
	ProcessedBy         string     `json:"processed_by"`
	ProcessedAt         time.Time  `json:"processed_at"`
	Response            *string    `json:"response,omitempty"`
	ResponseGeneratedAt *time.Time `json:"response_generated_at,omitempty"`
	Posted              *bool      `json:"posted,omitempty"`
	ResponseID          *string    `json:"response_id,omitempty"`
}

// Interaction is one prior exchange with an author: what they posted and what
// we replied, used for the recent-interaction digest.
type Interaction struct {
	PostText string    `json:"post_text"`
	Response string    `json:"response"`
	At       time.Time `json:"at"`
}
