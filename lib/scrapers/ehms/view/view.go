package view

import (
	"context"

	"ehms-backend/lib/htmlutil"
	"ehms-backend/lib/scrapers/ehms/core"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/ehms/view")

// Client exposes the portal's pages as typed values. All auth handling
// lives in the core client; this layer is selector extraction only.
type Client struct {
	Core *core.Client
}

func NewClient(coreClient *core.Client) Client {
	return Client{Core: coreClient}
}

type Announcement struct {
	Title string
	Date  string
	Body  string
	Links []htmlutil.Anchor
}

func (c Client) Announcements(ctx context.Context, user *core.User) ([]Announcement, error) {
	ctx, span := tracer.Start(ctx, "client:Announcements")
	defer span.End()

	doc, err := c.Core.Fetch(ctx, core.EndpointNewsBoard, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch news board")
		return nil, err
	}

	return parseAnnouncements(ctx, doc), nil
}

func parseAnnouncements(ctx context.Context, doc *goquery.Document) []Announcement {
	var out []Announcement
	doc.Find("div.news_item").Each(func(_ int, item *goquery.Selection) {
		out = append(out, Announcement{
			Title: htmlutil.CleanText(item.Find("div.news_title").Text()),
			Date:  htmlutil.CleanText(item.Find("span.news_date").Text()),
			Body:  htmlutil.CleanText(item.Find("div.news_content").Text()),
			Links: htmlutil.GetAnchors(ctx, item.Find("div.news_content a")),
		})
	})
	return out
}

type UserDetails struct {
	Name         string
	AlbumNumber  string
	Faculty      string
	FieldOfStudy string
	Email        string
}

func (c Client) UserDetails(ctx context.Context, user *core.User) (UserDetails, error) {
	ctx, span := tracer.Start(ctx, "client:UserDetails")
	defer span.End()

	doc, err := c.Core.Fetch(ctx, core.EndpointUserDetails, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch user details")
		return UserDetails{}, err
	}

	return parseUserDetails(doc), nil
}

// the details page is a label/value table with Polish row headers
func parseUserDetails(doc *goquery.Document) UserDetails {
	fields := map[string]string{}
	doc.Find("table.user_data tr").Each(func(_ int, row *goquery.Selection) {
		label := htmlutil.CleanText(row.Find("th").Text())
		value := htmlutil.CleanText(row.Find("td").Text())
		if label != "" {
			fields[label] = value
		}
	})

	return UserDetails{
		Name:         fields["Imię i nazwisko"],
		AlbumNumber:  fields["Nr albumu"],
		Faculty:      fields["Wydział"],
		FieldOfStudy: fields["Kierunek"],
		Email:        fields["E-mail"],
	}
}
