package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewbook/internal/config"
	"brewbook/pkg/types"
)

func mustDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := ParseHTML([]byte(markup))
	require.NoError(t, err)
	return doc
}

func TestClassify(t *testing.T) {
	tests := []struct {
		domain string
		want   types.ContentCategory
		route  Route
	}{
		{"instagram.com", types.CategorySocial, RouteSocial},
		{"www.TikTok.com", types.CategorySocial, RouteSocial},
		{"coffeecopycat.com", types.CategoryBlog, RouteRecipe},
		{"myblog.net", types.CategoryBlog, RouteRecipe},
		{"medium.com", types.CategoryBlog, RouteRecipe},
		{"allrecipes.com", types.CategoryRecipeSite, RouteRecipe},
		{"food52.com", types.CategoryRecipeSite, RouteRecipe},
		{"example.org", types.CategoryOther, RouteRecipe},
		{"", types.CategoryOther, RouteRecipe},
	}
	for _, tc := range tests {
		t.Run(tc.domain, func(t *testing.T) {
			got := Classify(tc.domain)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.route, RouteFor(got))
		})
	}
}

func TestClassifyOrderSocialBeforeBlog(t *testing.T) {
	assert.Equal(t, types.CategorySocial, Classify("blog.instagram.com"))
	assert.Equal(t, types.CategoryBlog, Classify("foodblog.com"))
}

const recipeJSONLD = `<html><head><title>Cortado | Cafe</title>
<script type="application/ld+json">{not json</script>
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"WebPage","name":"Cafe"},
  {"@type":["Recipe","NewsArticle"],
   "name":"Cortado",
   "description":"Equal parts espresso and milk.",
   "recipeIngredient":["1 shot espresso","1 oz steamed milk"],
   "recipeInstructions":[
     {"@type":"HowToStep","text":"Pull the shot."},
     {"@type":"HowToStep","name":"Add the milk."},
     "Serve immediately."
   ],
   "image":{"@type":"ImageObject","url":"https://img.example/cortado.jpg"},
   "prepTime":"PT5M","totalTime":"PT6M",
   "recipeYield":["1","1 glass"],
   "recipeCuisine":"Spanish","recipeCategory":"Drink"}
]}
</script></head><body><h2>Ingredients</h2><ul><li>ignored</li></ul></body></html>`

func TestFromStructuredData(t *testing.T) {
	content, ok := FromStructuredData(mustDoc(t, recipeJSONLD))
	require.True(t, ok)

	assert.Equal(t, "Cortado", content.Title)
	assert.Equal(t, "Equal parts espresso and milk.", content.Excerpt)
	assert.Equal(t, []string{"1 shot espresso", "1 oz steamed milk"}, content.Ingredients)
	assert.Equal(t, []string{"Pull the shot.", "Add the milk.", "Serve immediately."}, content.Steps)
	assert.Equal(t, "https://img.example/cortado.jpg", content.ImageURL)
	assert.Equal(t, "PT5M", content.PrepTime)
	assert.Equal(t, "PT6M", content.TotalTime)
	assert.Equal(t, "1, 1 glass", content.Servings)
	assert.Equal(t, "Spanish", content.Cuisine)
	assert.Equal(t, "Drink", content.Course)
	assert.True(t, content.Structured)
}

func TestFromStructuredDataSectionsAndNumbers(t *testing.T) {
	markup := `<script type="application/ld+json">[{"@type":"Recipe","name":"Chai",
"recipeYield":2,
"image":["https://img.example/chai.jpg"],
"recipeInstructions":[{"@type":"HowToSection","name":"Brew","itemListElement":[
  {"@type":"HowToStep","text":"Simmer the spices."},
  {"@type":"HowToStep","text":"Add the tea."}]}]}]</script>`
	content, ok := FromStructuredData(mustDoc(t, markup))
	require.True(t, ok)
	assert.Equal(t, []string{"Simmer the spices.", "Add the tea."}, content.Steps)
	assert.Equal(t, "2", content.Servings)
	assert.Equal(t, "https://img.example/chai.jpg", content.ImageURL)
	assert.Empty(t, content.Ingredients)
}

func TestFromStructuredDataMisses(t *testing.T) {
	cases := map[string]string{
		"no block":   `<html><head><title>x</title></head></html>`,
		"not recipe": `<script type="application/ld+json">{"@type":"Article","name":"x"}</script>`,
		"bad json":   `<script type="application/ld+json">{"@type":"Recipe",</script>`,
		"empty":      `<script type="application/ld+json">   </script>`,
	}
	for name, markup := range cases {
		t.Run(name, func(t *testing.T) {
			content, ok := FromStructuredData(mustDoc(t, markup))
			assert.False(t, ok)
			assert.Nil(t, content)
		})
	}
}

const headingPage = `<html><head><title> Iced Vanilla Latte </title>
<meta name="description" content=" A cold classic. "></head>
<body>
<h2>Ingredients</h2>
<ul><li>2 shots espresso</li><li>1 cup   milk</li></ul>
<h2>Instructions</h2>
<ol><li>Brew the espresso.</li><li>Pour over ice and add milk.</li></ol>
<h2>Notes</h2><ul><li>Enjoy</li></ul>
<p>Prep time: 5 minutes. Total time: 10 minutes. Servings: 2. Difficulty: Easy</p>
</body></html>`

func TestHeuristicHeadingScoped(t *testing.T) {
	content := Heuristic(mustDoc(t, headingPage))

	assert.Equal(t, "Iced Vanilla Latte", content.Title)
	assert.Equal(t, "A cold classic.", content.Excerpt)
	assert.Equal(t, []string{"2 shots espresso", "1 cup milk"}, content.Ingredients)
	assert.Equal(t, []string{"Brew the espresso.", "Pour over ice and add milk."}, content.Steps)
	assert.Equal(t, "5", content.PrepTime)
	assert.Equal(t, "10", content.TotalTime)
	assert.Equal(t, "2", content.Servings)
	assert.Equal(t, "easy", content.Difficulty)
	assert.False(t, content.Structured)
}

const leafPage = `<html><head><title>Matcha</title></head><body>
<div class="post">
<p>This matcha is wonderful and you will love it so much.</p>
<p>1 tsp matcha powder sifted</p>
<p>8 oz oat milk, warmed</p>
<p>Whisk the matcha with a splash of hot water until smooth.</p>
<p>Pour the warm milk over the matcha and serve.</p>
<p>See https://example.com for 2 cups of more.</p>
</div></body></html>`

func TestHeuristicLeafFallback(t *testing.T) {
	content := Heuristic(mustDoc(t, leafPage))

	assert.Equal(t, "Matcha", content.Title)
	assert.Equal(t, "", content.Excerpt)
	assert.Equal(t, []string{"1 tsp matcha powder sifted", "8 oz oat milk, warmed"}, content.Ingredients)
	assert.Equal(t, []string{
		"Whisk the matcha with a splash of hot water until smooth.",
		"Pour the warm milk over the matcha and serve.",
	}, content.Steps)
}

func TestHeuristicUnitWordsStandAlone(t *testing.T) {
	markup := `<ul>
<li>Browse our frozen treats collection</li>
<li>Take a screenshot to save it for later</li>
<li>250ml oat milk, steamed</li>
<li>2 shots ristretto, pulled short</li>
</ul>`
	content := Heuristic(mustDoc(t, markup))
	assert.Equal(t, []string{"250ml oat milk, steamed", "2 shots ristretto, pulled short"}, content.Ingredients)
}

func TestHeuristicIgnoresPageTitleHeading(t *testing.T) {
	markup := `<html><body>
<h1>How to make a dirty chai at home</h1>
<ul><li>Newsletter</li><li>Shop our mugs</li></ul>
<h2>Method</h2>
<ol><li>Steep the chai.</li><li>Add the espresso.</li></ol>
</body></html>`
	content := Heuristic(mustDoc(t, markup))
	assert.Equal(t, []string{"Steep the chai.", "Add the espresso."}, content.Steps)
}

func TestHeuristicCapsMatches(t *testing.T) {
	var b strings.Builder
	b.WriteString("<ul>")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "<li>%d cup of milk, steamed</li>", i)
	}
	b.WriteString("</ul>")
	content := Heuristic(mustDoc(t, b.String()))
	assert.Len(t, content.Ingredients, 20)
}

func TestHeuristicNeverFails(t *testing.T) {
	for _, markup := range []string{"", "not html at all", "<<<>>>", "<html><body></body></html>"} {
		content := Heuristic(mustDoc(t, markup))
		assert.Equal(t, "", content.Title)
		assert.Equal(t, "", content.Excerpt)
		assert.True(t, content.Empty())
	}
	assert.NotPanics(t, func() { Heuristic(nil) })
}

func TestCleanerDropsNoiseWithoutTouchingInput(t *testing.T) {
	markup := `<body><script>var cup = "1 cup of sugar here";</script>
<div class="advert-box"><p>2 cups of sugar sponsored</p></div>
<p>1 cup whole milk, cold</p></body>`
	doc := mustDoc(t, markup)
	cleaner := NewCleaner(config.Default().Preprocess)

	content := Heuristic(cleaner.Clean(doc))
	assert.Equal(t, []string{"1 cup whole milk, cold"}, content.Ingredients)
	assert.Equal(t, 1, doc.Find("script").Length())
}

func TestSocialPreview(t *testing.T) {
	markup := `<html><head><title>Instagram</title>
<meta property="og:title" content="Brown sugar shaken espresso">
<meta property="og:description" content="My morning go-to">
<meta property="og:image" content="https://cdn.example/p.jpg"></head>
<body><ul><li>1 cup milk and more milk</li></ul></body></html>`
	content := SocialPreview(mustDoc(t, markup))
	assert.Equal(t, "Brown sugar shaken espresso", content.Title)
	assert.Equal(t, "My morning go-to", content.Excerpt)
	assert.Equal(t, "https://cdn.example/p.jpg", content.ImageURL)
	assert.Empty(t, content.Ingredients)
}

func TestExtractorRoutes(t *testing.T) {
	ex := New(config.Default().Preprocess)

	structured, err := ex.Extract(RouteRecipe, []byte(recipeJSONLD))
	require.NoError(t, err)
	assert.True(t, structured.Structured)
	assert.Len(t, structured.Steps, 3)

	heuristic, err := ex.Extract(RouteRecipe, []byte(headingPage))
	require.NoError(t, err)
	assert.False(t, heuristic.Structured)
	assert.Len(t, heuristic.Ingredients, 2)

	social, err := ex.Extract(RouteSocial, []byte(recipeJSONLD))
	require.NoError(t, err)
	assert.Equal(t, "Cortado | Cafe", social.Title)
	assert.Empty(t, social.Steps)
}

func TestExtractorBackfillsTitle(t *testing.T) {
	markup := `<html><head><title>Page Title</title><meta name="description" content="Page excerpt">
<script type="application/ld+json">{"@type":"Recipe","recipeIngredient":["1 cup milk"]}</script></head></html>`
	content, err := New(config.PreprocessConfig{}).Extract(RouteRecipe, []byte(markup))
	require.NoError(t, err)
	assert.Equal(t, "Page Title", content.Title)
	assert.Equal(t, "Page excerpt", content.Excerpt)
	assert.Equal(t, []string{"1 cup milk"}, content.Ingredients)
}
