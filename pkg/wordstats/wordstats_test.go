package wordstats_test

import (
	"reflect"
	"testing"

	"github.com/MrWong99/parley/pkg/caption"
	"github.com/MrWong99/parley/pkg/wordstats"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	got := wordstats.Tokenize("I'm fine, thanks! 'quoted' 42.")
	want := []string{"I'm", "fine", ",", "thanks", "!", "'", "quoted", "42", "."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %q, want %q", got, want)
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	a := wordstats.New()
	st := a.Analyze("the budget is late. the budget is late! Budget review said back.")

	if st.Tokens != 15 {
		t.Errorf("Tokens = %d, want 15", st.Tokens)
	}
	if st.Words != 12 {
		t.Errorf("Words = %d, want 12", st.Words)
	}
	// budget x3, late x2, review x1; "said" and "back" are filler.
	if st.ContentWords != 6 {
		t.Errorf("ContentWords = %d, want 6", st.ContentWords)
	}
	wantWords := []wordstats.WordCount{{Word: "budget", Count: 3}, {Word: "late", Count: 2}, {Word: "review", Count: 1}}
	if !reflect.DeepEqual(st.TopWords, wantWords) {
		t.Errorf("TopWords = %+v, want %+v", st.TopWords, wantWords)
	}
	if len(st.TopTrigrams) != 2 {
		t.Fatalf("TopTrigrams = %+v, want 2 entries", st.TopTrigrams)
	}
	if got := st.TopTrigrams[0]; got.String() != "the budget is" || got.Count != 2 {
		t.Errorf("TopTrigrams[0] = %s (%d), want 'the budget is' (2)", got, got.Count)
	}
	if got := st.TopTrigrams[1]; got.String() != "budget is late" || got.Count != 2 {
		t.Errorf("TopTrigrams[1] = %s (%d), want 'budget is late' (2)", got, got.Count)
	}
}

func TestAnalyze_Options(t *testing.T) {
	t.Parallel()

	a := wordstats.New(wordstats.WithStopwords("Budget"), wordstats.WithTopWords(1), wordstats.WithTopTrigrams(0))
	st := a.Analyze("budget review review")
	if st.ContentWords != 2 {
		t.Errorf("ContentWords = %d, want 2", st.ContentWords)
	}
	if len(st.TopWords) != 1 || st.TopWords[0].Word != "review" {
		t.Errorf("TopWords = %+v", st.TopWords)
	}
	if st.TopTrigrams != nil {
		t.Errorf("TopTrigrams = %+v, want nil", st.TopTrigrams)
	}
}

func TestAnalyzeChunks(t *testing.T) {
	t.Parallel()

	st := wordstats.New().AnalyzeChunks([]caption.Chunk{
		{Speaker: "A", Text: "deploy tonight"},
		{Speaker: "B", Text: "deploy tomorrow"},
	})
	if st.Words != 4 || st.TopWords[0].Word != "deploy" || st.TopWords[0].Count != 2 {
		t.Errorf("AnalyzeChunks = %+v", st)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	t.Parallel()

	st := wordstats.New().Analyze("")
	if st.Tokens != 0 || st.Words != 0 || len(st.TopTrigrams) != 0 || len(st.TopWords) != 0 {
		t.Errorf("Analyze(\"\") = %+v, want zero", st)
	}
}
