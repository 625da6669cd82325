package utility

import (
	"fmt"
	"io"
	"text/tabwriter"

	"go-attentiongan/nn"
	"go-attentiongan/tensor"
)

// Network is anything the inspector can list layer by layer.
type Network interface {
	Name() string
	Layers() []nn.Layer
}

// provides utility functions to analyze and log details of a set of networks.
type ModelInspector struct {
	networks []Network
}

// creates a new inspector for the given networks.
func NewModelInspector(networks ...Network) *ModelInspector {
	return &ModelInspector{networks: networks}
}

// writes a per-layer summary of every network to out
func (mi *ModelInspector) Summary(out io.Writer) {
	for _, network := range mi.networks {
		fmt.Fprintf(out, "\n--- %s Summary ---\n", network.Name())
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Layer (Type)\tParameters\tShape\tParam #")
		fmt.Fprintln(w, "--------------\t----------\t-----\t-------")

		for _, layer := range network.Layers() {
			params := layer.Parameters()
			layerName := layer.Name()

			if len(params) == 0 {
				fmt.Fprintf(w, "%s\t-\t-\t0\n", layerName)
				continue
			}

			names := []string{"Weight", "Bias"}
			for i, p := range params {
				paramName := fmt.Sprintf("Param%d", i)
				if i < len(names) {
					paramName = names[i]
				}
				layerDisplayName := layerName
				if i > 0 {
					layerDisplayName = ""
				}
				fmt.Fprintf(w, "%s\t%s\t%v\t%d\n", layerDisplayName, paramName, p.GetShape(), tensor.Numel(p))
			}
		}
		w.Flush()

		total, trainable := countParameters(network)
		fmt.Fprintln(out, "----------------------------------")
		fmt.Fprintf(out, "Total Parameters: %d\n", total)
		fmt.Fprintf(out, "Trainable Parameters: %d\n", trainable)
	}
	fmt.Fprintln(out, "----------------------------------")
}

// parameter counts summed over all networks.
func (mi *ModelInspector) CountParameters() (total int64, trainable int64) {
	for _, network := range mi.networks {
		t, tr := countParameters(network)
		total += t
		trainable += tr
	}
	return total, trainable
}

func countParameters(network Network) (total int64, trainable int64) {
	for _, layer := range network.Layers() {
		for _, p := range layer.Parameters() {
			numel := int64(tensor.Numel(p))
			total += numel
			if p.RequiresGrad {
				trainable += numel
			}
		}
	}
	return total, trainable
}
