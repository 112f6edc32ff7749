package server

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
)

//go:embed all:dist
var embedFS embed.FS

// GetAssetsFS は dist/assets を配信するファイルシステムを返す
func GetAssetsFS() http.FileSystem {
	assetsFS, err := fs.Sub(embedFS, "dist/assets")
	if err != nil {
		log.Fatalf("埋め込みアセットファイルシステムの作成に失敗: %v", err)
	}
	return http.FS(assetsFS)
}

// getIndexHTML は画面のHTMLを返す
func getIndexHTML() []byte {
	data, err := embedFS.ReadFile("dist/index.html")
	if err != nil {
		log.Fatalf("埋め込みindex.htmlの読み込みに失敗: %v", err)
	}
	return data
}
