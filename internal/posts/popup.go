package posts

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// PendingAnswer is shown while no AI answer has been stored for a post.
const PendingAnswer = "⏳ AIが回答を生成中です..."

// Source is a reference document cited by an AI answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// AnswerView is the stored AI answer of a post.
type AnswerView struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// AnswerLookup returns the stored answer of a post, or nil when there is none.
type AnswerLookup interface {
	Lookup(ctx context.Context, postID int64) (*AnswerView, error)
}

var jst = time.FixedZone("JST", 9*60*60)

// FormatDate renders t as YYYY/MM/DD HH:MM in Japan time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(jst).Format("2006/01/02 15:04")
}

type popupSource struct {
	Title string
	URL   string
}

type popupReply struct {
	Name string
	Date string
	Text string
}

type popupData struct {
	ID       int64
	Region   string
	CityWide bool
	AgeGroup string
	Gender   string
	Name     string
	Date     string
	Category string
	Content  string
	Likes    int
	Liked    bool
	Answer   string
	Pending  bool
	Sources  []popupSource
	Replies  []popupReply
}

var popupTmpl = template.Must(template.New("popup").Parse(`<div class="popup" data-id="{{.ID}}">
<div class="popup-region{{if .CityWide}} city-wide{{end}}">📍 {{.Region}}</div>
<div class="popup-attributes">👤 {{.AgeGroup}}・{{.Gender}}</div>
<div class="popup-header"><b>{{.Name}}</b> <span class="popup-date">{{.Date}}</span></div>
<div class="popup-category">🗂️ {{.Category}}</div>
<div class="popup-content">{{.Content}}</div>
<div class="popup-like"><button class="heart-btn{{if .Liked}} liked{{end}}" data-id="{{.ID}}">{{if .Liked}}❤️{{else}}🤍{{end}} <span class="heart-count">{{.Likes}}</span></button></div>
<div class="ai-box" id="ai-box-{{.ID}}">
<b>🤖 AI回答（市・市議会の資料に基づく回答）</b>
<div class="ai-text" id="ai-text-{{.ID}}">{{if .Pending}}{{.Answer}}{{else}}<p>{{.Answer}}</p>{{if .Sources}}
<div class="ai-sources"><b>📚 参考資料（関連が高い順）</b><ul>{{range .Sources}}<li><a href="{{.URL}}" target="_blank" rel="noopener noreferrer">{{.Title}}</a></li>{{end}}</ul></div>{{end}}{{end}}</div>
<button class="regen-ai" id="regen-ai-{{.ID}}">🔁 再回答</button>
</div>
<div class="popup-replies" id="replies-{{.ID}}">{{range .Replies}}
<div class="reply"><b>{{.Name}}</b> <span class="reply-date">{{.Date}}</span><br/><span>{{.Text}}</span></div>{{end}}
</div>
<form class="reply-form"><input name="name" maxlength="50" placeholder="ニックネーム" required /><textarea name="content" rows="2" maxlength="500" placeholder="返信..." required></textarea><button type="submit">返信</button></form>
</div>`))

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// RenderPopup renders the popup fragment of a post. Every user-supplied
// string is escaped by html/template; source links with unsafe schemes are
// neutralised the same way. Replies must already be in ascending order.
func RenderPopup(p Post, replies []Reply, answer *AnswerView, liked bool) (string, error) {
	data := popupData{
		ID:       p.ID,
		Region:   RegionLabel(p),
		CityWide: RegionLabel(p) == CityWideLabel,
		AgeGroup: orDefault(p.AgeGroup, Unanswered),
		Gender:   orDefault(p.Gender, Unanswered),
		Name:     p.DisplayName,
		Date:     FormatDate(p.CreatedAt),
		Category: orDefault(p.Category, Uncategorized),
		Content:  strings.TrimLeft(p.Content, " \t\r\n"),
		Likes:    p.Likes,
		Liked:    liked,
	}

	if answer == nil || answer.Answer == "" {
		data.Pending = true
		data.Answer = PendingAnswer
	} else {
		data.Answer = answer.Answer
		for i, s := range answer.Sources {
			data.Sources = append(data.Sources, popupSource{
				Title: orDefault(s.Title, fmt.Sprintf("資料%d", i+1)),
				URL:   orDefault(s.URL, "#"),
			})
		}
	}

	for _, r := range replies {
		data.Replies = append(data.Replies, popupReply{Name: r.DisplayName, Date: FormatDate(r.CreatedAt), Text: r.Content})
	}

	var buf bytes.Buffer
	if err := popupTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render popup %d: %w", p.ID, err)
	}
	return buf.String(), nil
}
