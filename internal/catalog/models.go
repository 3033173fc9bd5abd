package catalog

// Wire shapes of the catalog payloads, limited to the fields this client
// reads. The serie list comes either from the JSON API (signed in) or
// from the __NEXT_DATA__ blob embedded in the serie web page (guest);
// both carry the same inner data.

type serieAPIResponse struct {
	Data serieData `json:"data"`
}

type serieData struct {
	Product struct {
		Title string `json:"title"`
	} `json:"product"`
	EpisodeList []mediaEntry `json:"episode_list"`
}

type mediaEntry struct {
	ID         int    `json:"id"`
	ProductID  int    `json:"product_id"`
	Volume     int    `json:"volume"`
	Title      string `json:"title"`
	OrderValue int    `json:"order_value"`
	PageCount  int    `json:"page_count"`
	UseType    string `json:"use_type"`
	MediaType  string `json:"episode_type"`
}

type serieNextData struct {
	Props struct {
		PageProps struct {
			InitialState struct {
				ProductHome struct {
					ProductHome serieData `json:"productHome"`
				} `json:"productHome"`
			} `json:"initialState"`
		} `json:"pageProps"`
	} `json:"props"`
}

type viewerNextData struct {
	Props struct {
		PageProps struct {
			InitialState struct {
				Viewer struct {
					PData viewerData `json:"pData"`
				} `json:"viewer"`
			} `json:"initialState"`
		} `json:"pageProps"`
	} `json:"props"`
}

type viewerData struct {
	IsScrambled bool          `json:"isScrambled"`
	Grid        *gridSpec     `json:"grid"`
	Img         []viewerImage `json:"img"`
}

type viewerImage struct {
	Path string    `json:"path"`
	Grid *gridSpec `json:"grid"`
}

type gridSpec struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}
