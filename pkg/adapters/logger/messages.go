package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Extractor
		"Downloading %s":                "%s をダウンロード中",
		"Cleanup after failed open: %v": "オープン失敗後の後始末でエラー: %v",
		"Opened %s with %s: stream %d, %dx%d, time base %s, %.3fs": "%s を %s で開きました: ストリーム %d, %dx%d, タイムベース %s, %.3f秒",
		"Seeking to pts %d for target %d":                          "ターゲット %[2]d のため pts %[1]d へシーク",
		"Created %s decoder for stream %d":                         "ストリーム %[2]d 用の %[1]s デコーダを作成しました",
		"End of stream, decoder flushed %d frames":                 "ストリーム終端: デコーダから %d フレームを取り出しました",
		"No frame for pts %d, retrying from seek offset %d":        "pts %d のフレームがありません。シークオフセット %d から再試行します",
		"Overshot pts %d, next frame at %d":                        "pts %d を通り過ぎました。次のフレームは %d",

		// Backends
		"Selected %s backend for %s codec": "%[2]s コーデックに %[1]s バックエンドを選択しました",

		// Downloader
		"Downloaded %s to %s (%d bytes)":           "%s を %s にダウンロードしました (%d バイト)",
		"Removed download %s":                      "ダウンロードファイル %s を削除しました",
		"Failed to remove partial download %s: %v": "途中までのダウンロード %s を削除できませんでした: %v",

		// Contact sheet
		"Building contact sheet: %d frames over %.2fs": "コンタクトシートを作成中: %[2].2f秒から %[1]d フレーム",
		"Placed frame %d at %.3fs":                     "%[2].3f秒のフレームを %[1]d 番目に配置しました",

		// Synthetic video
		"Generating %d frames at %.1f fps": "%[2].1f fps で %[1]d フレームを生成中",
		"Video encoded: %d bytes":          "動画をエンコードしました: %d バイト",
	})
}
