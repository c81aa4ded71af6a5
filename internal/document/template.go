package document

import "github.com/mantavyam/pitch-note-pilot/internal/identity"

const (
	StarterNodeTitle    = "NEWS-CATEGORY"
	StarterHeadline     = "News Item Headline"
	StarterDescription  = "News item description..."
	StarterImageAlt     = "News item image"
	StarterImageCaption = "Image caption"
)

// NewsItem builds the headline, image and description triple that makes up
// one news item, ordered from start.
func NewsItem(ids identity.Generator, start int) []SubNode {
	return []SubNode{
		{ID: ids.NewID(), Type: TypeHeadline, Content: Headline{Text: StarterHeadline}, Order: start},
		{ID: ids.NewID(), Type: TypeImage, Content: Image{Alt: StarterImageAlt, Caption: StarterImageCaption}, Order: start + 1},
		{ID: ids.NewID(), Type: TypeDescription, Content: Description{Text: StarterDescription}, Order: start + 2},
	}
}

// StarterNode is the node every new document begins with.
func StarterNode(ids identity.Generator) Node {
	return NewNode(ids.NewID(), StarterNodeTitle, 0, NewsItem(ids, 0)...)
}
