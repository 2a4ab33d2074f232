package db

// Graph bundles the write and read surfaces over one client. It is the
// concrete store handed to the indexing pipeline and the API layer.
type Graph struct {
	*GraphWriter
	*GraphReader
}

func NewGraph(client *Client) *Graph {
	return &Graph{
		GraphWriter: NewGraphWriter(client),
		GraphReader: NewGraphReader(client),
	}
}
