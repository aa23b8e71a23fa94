package cli

import (
	"fmt"
	"io"

	"github.com/sleepydirt/vision/internal/client"
	"github.com/sleepydirt/vision/internal/domain"
)

// printView writes the view the way the popup showed it: the explanation, or
// the error, or a processing marker.
func printView(w io.Writer, view domain.ClientViewState) {
	switch {
	case view.IsProcessing:
		fmt.Fprintf(w, "Processing request %s...\n", view.RequestID)
	case view.Error != "":
		fmt.Fprintf(w, "Error: %s\n", view.Error)
	case view.Explanation != "":
		fmt.Fprintln(w, view.Explanation)
	default:
		fmt.Fprintln(w, "Nothing to show.")
	}
}

func modelStatusText(status domain.ModelStatus) string {
	switch status {
	case domain.ModelLoaded:
		return client.TextModelLoaded
	case domain.ModelLoading:
		return client.TextModelLoadingNow
	default:
		return client.TextModelNotLoaded
	}
}
