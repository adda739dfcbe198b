package parser

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmazurek/forum-archiver/internal/entity"
)

func testParser(t *testing.T) *PhpBB {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewPhpBB(Variant{
		Name:     "wiara",
		Title:    "wiara.pl",
		StartURL: "https://forum.wiara.pl",
	}, log)
}

const rootPage = `<html><body>
	<a class="forumlink" href="viewforum.php?f=5">Modlitwa</a>
	<a class="forumlink" href="viewforum.php?f=7">Pismo Święte</a>
	<a href="viewforum.php?f=9">not a section link</a>
</body></html>`

const sectionPage = `<html><body><table>
	<tr><th>Tematy</th></tr>
	<tr>
		<td class="row1">ikona</td>
		<td class="row1"><a class="topictitle" href="viewtopic.php?f=5&amp;t=42">Hello World</a></td>
		<td class="row1"><span class="topicauthor"><a href="#">Jan</a></span></td>
		<td class="row1"><span class="topicdetails">7</span></td>
		<td class="row1"><span class="topicdetails">123</span></td>
		<td class="row1"><span class="topicdetails">12 kwietnia 2008, 21:15 <a href="#">Ola</a></span></td>
	</tr>
	<tr>
		<td class="row2">ikona</td>
		<td class="row2"><a class="topictitle" href="viewtopic.php?f=5&amp;t=42">Hello World</a></td>
		<td class="row2"><span class="topicauthor"><a href="#">Jan</a></span></td>
		<td class="row2"><span class="topicdetails">7</span></td>
		<td class="row2"><span class="topicdetails">123</span></td>
		<td class="row2"><span class="topicdetails">12 kwietnia 2008, 21:15</span></td>
	</tr>
	<tr>
		<td class="row1">ikona</td>
		<td class="row1"><a class="topictitle" href="viewtopic.php?f=5&amp;t=77">Drugi temat</a></td>
		<td class="row1"><span class="topicauthor"><a href="#">Ola</a></span></td>
		<td class="row1"><span class="topicdetails">nie liczba</span></td>
		<td class="row1"><span class="topicdetails"></span></td>
		<td class="row1"><span class="topicdetails">wczoraj, 10:02</span></td>
	</tr>
	<tr><td>decorative row without striping class</td></tr>
</table>
	<span class="pagination">
		<a href="viewforum.php?f=5&amp;start=0">1</a>
		<a href="viewforum.php?f=5&amp;start=25">2</a>
	</span>
</body></html>`

const threadPage = `<html><body><table>
	<tr class="row1">
		<td><span class="postauthor">Jan</span>
			<div class="postdetails"><b>Dołączył(a):</b> 12 kwietnia 2008<br><b>Posty:</b> 15</div></td>
		<td><div class="postsubject"><a href="viewtopic.php?p=1001#p1001">Post</a></div>
			<div class="postbody">Dzień dobry</div></td>
	</tr>
	<tr class="row1"><td colspan="2"><span class="postbottom">12 kwietnia 2008, 21:15</span></td></tr>
	<tr class="row2">
		<td><span class="postauthor">Ola</span></td>
		<td><div class="postsubject"><a href="viewtopic.php?p=1002#p1002">Post</a></div>
			<div class="postbody"><div class="quotecontent">Dzień dobry</div>Witaj! Zobacz <a href="https://example.com/art">artykuł</a></div></td>
	</tr>
	<tr class="row2"><td colspan="2"><span class="postbottom">13 kwietnia 2008, 08:30</span></td></tr>
	<tr class="row1"><td>reklama bez autora</td><td>brak treści</td></tr>
</table>
	<td class="gensmall">
		<a href="viewtopic.php?f=5&amp;t=42&amp;start=0">1</a>
		<a href="viewtopic.php?f=5&amp;t=42&amp;start=15">2</a>
	</td>
</body></html>`

func parsePage(t *testing.T, p *PhpBB, url string, ctx Context, body string) *Result {
	t.Helper()
	res, err := p.Parse(Page{URL: url, Body: strings.NewReader(body), Ctx: ctx})
	require.NoError(t, err)
	return res
}

func TestParseRoot(t *testing.T) {
	p := testParser(t)
	res := parsePage(t, p, "https://forum.wiara.pl", Context{Role: RoleRoot}, rootPage)

	require.Len(t, res.Entities, 3)
	forum, ok := res.Entities[0].(entity.Forum)
	require.True(t, ok)
	assert.Equal(t, "wiara", forum.SpiderName)
	assert.Equal(t, "wiara.pl", forum.Title)

	section, ok := res.Entities[1].(entity.Section)
	require.True(t, ok)
	assert.Equal(t, "Modlitwa", section.Title)
	assert.Equal(t, "https://forum.wiara.pl/viewforum.php?f=5", section.URL)
	assert.Equal(t, entity.ByName("wiara"), section.Forum)

	require.Len(t, res.Follow, 2)
	assert.Equal(t, RoleSection, res.Follow[0].Ctx.Role)
	assert.Equal(t, "Modlitwa", res.Follow[0].Ctx.SectionTitle)
	assert.Equal(t, section.URL, res.Follow[0].Ctx.SectionURL)
}

func TestParseSection(t *testing.T) {
	p := testParser(t)
	sectionURL := "https://forum.wiara.pl/viewforum.php?f=5"
	ctx := Context{Role: RoleSection, SectionURL: sectionURL, SectionTitle: "Modlitwa"}
	res := parsePage(t, p, sectionURL, ctx, sectionPage)

	// The duplicated t=42 row is skipped within the page.
	var threads []entity.Thread
	for _, e := range res.Entities {
		if th, ok := e.(entity.Thread); ok {
			threads = append(threads, th)
		}
	}
	require.Len(t, threads, 2)

	hello := threads[0]
	assert.Equal(t, "Hello World", hello.Title)
	assert.True(t, strings.HasSuffix(hello.URL, "t=42"))
	assert.Equal(t, "Jan", hello.Author)
	assert.Equal(t, int64(7), hello.Replies)
	assert.Equal(t, int64(123), hello.Views)
	assert.Equal(t, "2008-04-12 21:15:00", hello.LastPostDate)
	assert.Equal(t, "Ola", hello.LastPostAuthor)
	assert.Equal(t, entity.ByURL(sectionURL), hello.Section)

	// Malformed counters degrade to zero, they are not identity.
	assert.Equal(t, int64(0), threads[1].Replies)
	assert.Equal(t, int64(0), threads[1].Views)

	// Follow-ups: both thread pages with resolved ids, then pagination.
	require.Len(t, res.Follow, 3)
	assert.Equal(t, RoleThread, res.Follow[0].Ctx.Role)
	assert.Equal(t, int64(42), res.Follow[0].Ctx.ThreadID)
	assert.Equal(t, hello.URL, res.Follow[0].Ctx.ThreadURL)
	assert.Equal(t, "Hello World", res.Follow[0].Ctx.ThreadTitle)
	assert.Equal(t, int64(77), res.Follow[1].Ctx.ThreadID)

	next := res.Follow[2]
	assert.Equal(t, RoleSection, next.Ctx.Role)
	assert.Equal(t, "https://forum.wiara.pl/viewforum.php?f=5&start=25", next.URL)
}

func TestParseThread(t *testing.T) {
	p := testParser(t)
	threadURL := "https://forum.wiara.pl/viewtopic.php?f=5&t=42"
	ctx := Context{
		Role: RoleThread, ThreadURL: threadURL, ThreadTitle: "Hello World", ThreadID: 42,
		SectionURL: "https://forum.wiara.pl/viewforum.php?f=5",
	}
	res := parsePage(t, p, threadURL, ctx, threadPage)

	var users []entity.User
	var posts []entity.Post
	for _, e := range res.Entities {
		switch v := e.(type) {
		case entity.User:
			users = append(users, v)
		case entity.Post:
			posts = append(posts, v)
		}
	}
	require.Len(t, users, 2)
	require.Len(t, posts, 2)

	jan := users[0]
	assert.Equal(t, "Jan", jan.Username)
	assert.Equal(t, "2008-04-12 00:00:00", jan.JoinDate)
	assert.Equal(t, int64(15), jan.PostsCount)

	// A row without the author details block still yields the user.
	assert.Equal(t, "Ola", users[1].Username)
	assert.Empty(t, users[1].JoinDate)

	first := posts[0]
	assert.Equal(t, entity.ByID(42), first.Thread)
	assert.Equal(t, entity.ByName("Jan"), first.User)
	assert.Equal(t, "Jan", first.Username)
	assert.Equal(t, int64(1001), first.Number)
	assert.Equal(t, "Dzień dobry", first.Content)
	assert.Equal(t, []string{}, first.ContentURLs)
	assert.Equal(t, "2008-04-12 21:15:00", first.PostDate)
	assert.True(t, strings.HasSuffix(first.URL, "p=1001#p1001"))

	// Quoted content is stripped before text and link extraction.
	second := posts[1]
	assert.Equal(t, int64(1002), second.Number)
	assert.NotContains(t, second.Content, "Dzień dobry")
	assert.Contains(t, second.Content, "Witaj!")
	assert.Equal(t, []string{"https://example.com/art"}, second.ContentURLs)
	assert.Equal(t, "2008-04-13 08:30:00", second.PostDate)

	// Pagination excludes the current offset.
	require.Len(t, res.Follow, 1)
	assert.Equal(t, "https://forum.wiara.pl/viewtopic.php?f=5&t=42&start=15", res.Follow[0].URL)
	assert.Equal(t, ctx, res.Follow[0].Ctx)
}

func TestParseThreadResolvesIDFromURL(t *testing.T) {
	p := testParser(t)
	threadURL := "https://forum.wiara.pl/viewtopic.php?f=5&t=42"
	res := parsePage(t, p, threadURL, Context{Role: RoleThread, ThreadURL: threadURL}, threadPage)

	for _, e := range res.Entities {
		if post, ok := e.(entity.Post); ok {
			assert.Equal(t, entity.ByID(42), post.Thread)
			return
		}
	}
	t.Fatal("no post parsed")
}

func TestDirectThread(t *testing.T) {
	p := testParser(t)
	res, err := p.DirectThread("https://forum.wiara.pl/viewtopic.php?f=5&t=42")
	require.NoError(t, err)

	require.Len(t, res.Entities, 3)
	_, isForum := res.Entities[0].(entity.Forum)
	assert.True(t, isForum)

	section, isSection := res.Entities[1].(entity.Section)
	require.True(t, isSection)
	assert.Equal(t, "https://forum.wiara.pl/viewforum.php?f=5", section.URL)
	assert.Equal(t, "manual", section.Title)

	thread, isThread := res.Entities[2].(entity.Thread)
	require.True(t, isThread)
	assert.Equal(t, "manual", thread.Title)
	assert.Equal(t, entity.ByURL(section.URL), thread.Section)

	require.Len(t, res.Follow, 1)
	assert.Equal(t, RoleThread, res.Follow[0].Ctx.Role)
	assert.Equal(t, int64(42), res.Follow[0].Ctx.ThreadID)
}

func TestDirectThreadWithoutSectionParam(t *testing.T) {
	p := testParser(t)
	res, err := p.DirectThread("https://forum.wiara.pl/viewtopic.php?t=42")
	require.NoError(t, err)

	// No f= parameter means no section placeholder can be derived.
	require.Len(t, res.Entities, 2)
	thread, ok := res.Entities[1].(entity.Thread)
	require.True(t, ok)
	assert.Equal(t, entity.NoRef(), thread.Section)
}

func TestParseEmptyPage(t *testing.T) {
	p := testParser(t)
	res := parsePage(t, p, "https://forum.wiara.pl/viewforum.php?f=5",
		Context{Role: RoleSection, SectionURL: "https://forum.wiara.pl/viewforum.php?f=5"},
		"<html><body></body></html>")
	assert.Empty(t, res.Entities)
	assert.Empty(t, res.Follow)
}

func TestVariantRegistry(t *testing.T) {
	assert.Equal(t, []string{"dolina_modlitwy", "radio_katolik", "wiara", "z_chrystusem"}, Names())

	log := logrus.New()
	log.SetOutput(io.Discard)
	p, err := ForName("wiara", log)
	require.NoError(t, err)
	assert.Equal(t, "wiara", p.Name())

	_, err = ForName("nope", log)
	assert.Error(t, err)
}
