package build

import "testing"

func TestInjectAssets(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"both tags",
			"<html><head><title>x</title></head><body><div id=app></div></body></html>",
			"<html><head><title>x</title>H</head><body><div id=app></div>B</body></html>",
		},
		{
			"uppercase tags",
			"<HTML><HEAD></HEAD><BODY></BODY></HTML>",
			"<HTML><HEAD>H</HEAD><BODY>B</BODY></HTML>",
		},
		{
			"no head or body",
			"<div></div>",
			"H<div></div>B",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(InjectAssets([]byte(tt.doc), "H", "B")); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPageAssetTags(t *testing.T) {
	a := pageAssets{
		Stylesheets: []string{"main.abc.css"},
		Icons: []Icon{
			{Name: "icons/favicon-32x32.png", Rel: "icon", Type: "image/png", Sizes: "32x32"},
			{Name: "icons/favicon.ico", Rel: "shortcut icon"},
		},
		Scripts: []string{"common.h.js", "vendor.h.js", "main.h.js"},
	}

	wantHead := `<link href="/main.abc.css" rel="stylesheet">` +
		`<link rel="icon" type="image/png" sizes="32x32" href="/icons/favicon-32x32.png">` +
		`<link rel="shortcut icon" href="/icons/favicon.ico">`
	if got := a.head("/"); got != wantHead {
		t.Errorf("head =\n%s\nwant\n%s", got, wantHead)
	}

	wantBody := `<script type="text/javascript" src="/common.h.js"></script>` +
		`<script type="text/javascript" src="/vendor.h.js"></script>` +
		`<script type="text/javascript" src="/main.h.js"></script>`
	if got := a.body("/"); got != wantBody {
		t.Errorf("body =\n%s\nwant\n%s", got, wantBody)
	}
}
