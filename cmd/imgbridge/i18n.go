// Package main provides localization for the imgbridge CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Root command
		"Identify and decode AVIF, HEIC and OpenEXR images": "AVIF・HEIC・OpenEXR 画像の判定とデコード",
		"Path to a YAML configuration file":                 "YAML 設定ファイルのパス",
		"Log level (debug, info, warn, error)":              "ログレベル (debug, info, warn, error)",
		"Suppress all log output":                           "ログ出力をすべて抑制",
		"Show version information":                          "バージョン情報を表示",
		"imgbridge version %s":                              "imgbridge バージョン %s",
		"Interrupted, shutting down...":                     "中断されました。終了しています...",

		// Commands
		"List the formats this build can decode":           "デコード可能なフォーマットを一覧表示",
		"Detect the container format from the file header": "ファイルヘッダーからコンテナ形式を判定",
		"Describe images without decoding pixels":          "ピクセルをデコードせずに画像情報を表示",
		"Decode an image and write a PNG preview":          "画像をデコードして PNG プレビューを書き出す",
		"Write embedded metadata blobs to files":           "埋め込みメタデータをファイルに書き出す",
		"Print JSON":                                       "JSON で出力",
		"Skip metadata extraction":                         "メタデータの抽出を省略",
		"Number of files identified in parallel":           "並列に判定するファイル数",
		"Output PNG file path":                             "出力 PNG ファイルのパス",
		"Output path for the Exif blob":                    "Exif の出力先パス",
		"Output path for the XMP packet":                   "XMP の出力先パス",
		"Output path for the ICC profile":                  "ICC プロファイルの出力先パス",

		"Flatten transparency onto a hex colour (e.g. #ffffff)":         "透明部分を指定色で塗りつぶす (例: #ffffff)",
		"Longest side of the preview in pixels (0 keeps the full size)": "プレビューの長辺ピクセル数 (0 で原寸)",

		// Identify report
		"Write a Markdown summary to this path": "Markdown 形式のサマリーの出力先",
		"Identify Summary":                      "判定サマリー",
		"Settings":                              "設定",
		"Probe Order":                           "判定順序",
		"Workers":                               "ワーカー数",
		"Metadata":                              "メタデータ",
		"Pixel Limit":                           "ピクセル数上限",
		"Results":                               "結果",
		"Identified":                            "成功",
		"Failed":                                "失敗",
		"Failures":                              "失敗したファイル",
		"File":                                  "ファイル",
		"Format":                                "フォーマット",
		"Size":                                  "サイズ",
		"Layout":                                "レイアウト",
		"Alpha":                                 "アルファ",
		"File Size":                             "ファイルサイズ",
		"Generated at":                          "生成日時",
		"Yes":                                   "あり",
		"No":                                    "なし",

		// Errors
		"No input files":                     "入力ファイルがありません",
		"Exactly one input file is required": "入力ファイルを1つだけ指定してください",
		"%d of %d files failed":              "%[2]d ファイル中 %[1]d ファイルが失敗しました",
	})
}
