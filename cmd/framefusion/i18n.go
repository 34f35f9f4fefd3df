// Package main provides localization for the framefusion CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration": "設定",
		"Logging":       "ログ",

		// Root command
		"Extract frames from videos by presentation time": "表示時刻を指定して動画からフレームを取り出す",
		"YAML configuration file":                         "YAML設定ファイル",
		"Decoding backend (auto, native, libav)":          "デコードバックエンド (auto, native, libav)",
		"Decoder thread count":                            "デコーダのスレッド数",
		"Log level (debug, info, warn, error)":            "ログレベル (debug, info, warn, error)",
		"Suppress all log output":                         "すべてのログ出力を抑制",

		// Info command
		"Show stream information": "ストリーム情報を表示",
		"Print a Markdown report": "Markdown形式のレポートを出力",

		// Frame and frames commands
		"Write the frame shown at a time":         "指定時刻に表示されるフレームを書き出す",
		"Write the frames shown at several times": "複数の時刻に表示されるフレームを書き出す",
		"Time in seconds":                         "時刻（秒）",
		"Comma separated times in seconds":        "カンマ区切りの時刻（秒）",
		"Output file path":                        "出力ファイルパス",
		"Output directory":                        "出力ディレクトリ",
		"Output format (png, jpeg, raw); defaults to the output extension": "出力形式 (png, jpeg, raw)。省略時は出力ファイルの拡張子から判定",
		"Write a Markdown summary of the extraction":                       "抽出結果のMarkdownサマリーを書き出す",
		"JPEG quality (1-100)":                                             "JPEG品質 (1-100)",
		"Frame at %.3fs saved to %s":                                       "%.3f秒のフレームを %s に保存しました",
		"Saved %d frames to %s (%d seeks, %d packets read)":                "%d フレームを %s に保存しました (シーク %d 回, パケット読み込み %d 回)",

		// Sheet command
		"Write a contact sheet of evenly spaced frames": "等間隔のフレームを並べたコンタクトシートを書き出す",
		"Number of thumbnails":                          "サムネイル数",
		"Number of columns":                             "カラム数",
		"Thumbnail width in pixels":                     "サムネイルの幅（ピクセル）",
		"Output image path (.png or .jpg)":              "出力画像パス (.png または .jpg)",
		"Contact sheet %dx%d saved to %s":               "%dx%d のコンタクトシートを %s に保存しました",

		// Synth command
		"Generate a test video with numbered frames": "フレーム番号入りのテスト動画を生成",
		"Output MP4 file path":                       "出力MP4ファイルパス",
		"Number of frames":                           "フレーム数",
		"Frames per second":                          "フレームレート",
		"Frames per keyframe":                        "キーフレーム間隔（フレーム数）",
		"Frame width":                                "フレームの幅",
		"Frame height":                               "フレームの高さ",
		"TrueType font for frame numbers":            "フレーム番号に使うTrueTypeフォント",
		"Video codec (mjpeg, av1)":                   "動画コーデック (mjpeg, av1)",
		"Output saved to %s":                         "出力を %s に保存しました",

		// Version command
		"Show version information": "バージョン情報を表示",
		"framefusion version %s":   "framefusion バージョン %s",

		// Errors
		"Error: %v":                           "エラー: %v",
		"Interrupted, shutting down...":       "中断されました。シャットダウン中...",
		"expected exactly one source, got %d": "ソースを1つだけ指定してください (%d 個指定されました)",
		"invalid time %q":                     "不正な時刻です: %q",
		"no times given":                      "時刻が指定されていません",
		"unknown codec %q":                    "不明なコーデックです: %q",
		"unknown output format %q":            "不明な出力形式です: %q",
	})
}
