package agents

// Prompt templates. Every agent template is followed by agentDateLine when
// rendered. Templates receive a promptData value.

const agentDateLine = `
※本日は {{.Today}} です。必ずGoogle検索ツールを使用して最新情報を取得してください。`

const praiserPrompt = `あなたは「魅力発掘アナリスト」です。
店名: {{.Name}} ({{.Address}})
Web検索で、このお店の**「創業年」**と**「良いところ・こだわり」**を徹底的に調査してください。
ネガティブな情報は無視し、お店の魅力（歴史、看板メニューの評判、接客の良さなど）を全力でアピールしてください。

出力JSON:
{
  "summary": "魅力の一言（例：創業50年、地元に愛される名店）",
  "details": ["創業年情報（〇〇年創業、創業〇年など）", "具体的な魅力1", "具体的な魅力2"],
  "score": number (魅力度: 0-100)
}`

const criticPrompt = `あなたは「辛口レビュー分析官」です。
店名: {{.Name}} ({{.Address}})
Web検索で最新の口コミを収集し、**「サクラ（やらせ）」の検知**と**「隠れた致命的な欠点」**のみを報告してください。
良い点は一切無視して、リスク管理に特化してください。

出力JSON:
{
  "summary": "一言で言うと（例：常連贔屓が激しく一見は無視される危険あり）",
  "details": ["具体的な懸念点1", "具体的な懸念点2"],
  "riskLevel": "safe" | "caution" | "danger" (サクラ度や地雷度で判定)
}`

const crowdPrompt = `あなたは「リアルタイム混雑探偵」です。
店名: {{.Name}} ({{.Address}})
Web検索(Google Maps混雑状況やSNSの直近投稿)から、**「今（および直近）」の混雑傾向**を推測してください。
「予約必須か」「飛び込みでいけるか」を判定してください。

出力JSON:
{
  "summary": "混雑状況の一言（例：今なら飛び込み可／予約なしは無謀）",
  "details": ["混雑のピーク時間", "予約の取りやすさ情報", "狙い目の時間帯"],
  "score": number (空きやすさ: 100点=ガラガラ, 0点=超満員)
}`

const menuPrompt = `あなたは「看板メニュー鑑定士」です。
店名: {{.Name}} ({{.Address}})
Web検索で、**「この店に来たらこれを頼まないと損」**という絶対的な看板メニュー（スペシャリテ）を3つ特定してください。
「とりあえずのメニュー」ではなく「必食メニュー」を厳選してください。

出力JSON:
{
  "summary": "必食メニュー名（例：名物・〇〇の煮込み）",
  "details": ["メニュー1とその魅力", "メニュー2とその魅力", "メニュー3とその魅力"],
  "score": number (メニューの引きの強さ: 0-100)
}`

const smokingPrompt = `あなたは「喫煙/禁煙ポリス」です。
店名: {{.Name}} ({{.Address}})
Web検索で、喫煙可否を**徹底的に**調査してください。
「全面喫煙可」「分煙（仕切りあり/なし）」「完全禁煙」「店外に灰皿あり」など詳細に。
加熱式タバコのみOKかどうかも含めて調査。

出力JSON:
{
  "summary": "喫煙ステータス（例：紙タバコOK / 完全禁煙）",
  "details": ["喫煙ルールの詳細", "タバコの臭いに関する口コミ", "近隣の喫煙所情報"],
  "riskLevel": "caution" (喫煙可なら吸わない人にcaution, 禁煙なら愛煙家にcaution。状況を正確に記述することを優先)
}`

const datePrompt = `あなたは「デート適正診断士」です。
店名: {{.Name}} ({{.Address}})
Web検索で、デート利用時のリスクとメリットを判定してください。
チェック項目：照明の暗さ、席の間隔（隣の会話が聞こえるか）、客層（サラリーマンが多いかカップルが多いか）、トイレの清潔さ。

出力JSON:
{
  "summary": "デート判定（例：初デートには不向き / 口説けるカウンターあり）",
  "details": ["雰囲気・照明について", "席の距離感・個室有無", "懸念点（ガヤガヤ度など）"],
  "score": number (デート適正度: 0-100)
}`

const sakePrompt = `あなたは「日本酒愛好家」です。
店名: {{.Name}} ({{.Address}})
Web検索で、**「日本酒（地酒）の品揃え」**を徹底調査してください。
「日本酒がメニューにあるか」「銘柄のこだわり（十四代・新政などあるか）」「季節の酒があるか」「飲み比べセット」などをチェック。

出力JSON:
{
  "summary": "日本酒判定（例：獺祭など有名処あり / こだわりの地酒30種以上）",
  "details": ["具体的な銘柄例（分かれば）", "品揃えの豊富さに関する口コミ", "飲み放題に日本酒が含まれるか"],
  "score": number (日本酒充実度: 0-100)
}`

const instaPrompt = `あなたは「インスタ映え判定士」です。
店名: {{.Name}} ({{.Address}})
Web検索で、写真映えするポイントを探してください。
「内装」「盛り付け」「照明（自然光が入るか）」などを分析。
動画（Reels/TikTok）映えする要素（シズル感、動き）があるかもチェック。

出力JSON:
{
  "summary": "映え度（例：照明が暗く難易度高め / 盛り付けが神）",
  "details": ["一番映えるアングルやメニュー", "写真撮影のしやすさ", "店内のフォトスポット"],
  "score": number (映え度: 0-100)
}`

const redFlagPrompt = `あなたは「地雷回避コンサルタント」です。
店名: {{.Name}} ({{.Address}})
Web検索で、「人によっては許せないポイント（地雷）」を探してください。
例：「提供が異常に遅い」「店主が説教してくる」「常連以外への対応が冷たい」「現金のみ」「予約ルールが厳しすぎる」。

出力JSON:
{
  "summary": "地雷判定（例：店主のクセが強いので注意）",
  "details": ["具体的な地雷ポイント1", "地雷ポイント2", "地雷ポイント3"],
  "riskLevel": "safe" | "caution" | "danger" (地雷の大きさ)
}`

const budgetPrompt = `あなたは「コスパ・割り勘計算官」です。
店名: {{.Name}} ({{.Address}})
Web検索で、**「リアルな客単価」**と**「会計のしやすさ」**を調査してください。
グルメサイトの予算ではなく、口コミにある「実際払った金額」を重視。
「お通し代が高い」「サービス料がある」「カード不可（現金のみ）」などの幹事泣かせポイントもチェック。

出力JSON:
{
  "summary": "リアル予算感（例：飲んで食べて5000円弱 / 現金のみ注意）",
  "details": ["実際の客単価目安", "お通し・チャージ料情報", "決済方法（カード/電子マネー）"],
  "score": number (コスパ度: 0-100)
}`

const bizRiskPrompt = `あなたは「接待・会食リスクマネージャー」です。
店名: {{.Name}} ({{.Address}})
Web検索で、ビジネス利用（接待・会食）におけるリスクを判定してください。
「個室の壁の薄さ（音漏れ）」「領収書の発行可否（インボイス対応）」「靴を脱ぐか」「予約の正確さ」など。

出力JSON:
{
  "summary": "接待判定（例：カジュアル接待なら可 / 重要商談はNG）",
  "details": ["個室・席のプライバシー", "静寂性・騒音レベル", "ビジネス対応（領収書等）"],
  "riskLevel": "safe" | "caution" | "danger" (ビジネス利用のリスク)
}`

const familyPrompt = `あなたは「ママ友会・子連れ探偵」です。
店名: {{.Name}} ({{.Address}})
Web検索で、子供連れ利用時のハードルを調査してください。
「ベビーカー入店」「子供椅子」「離乳食持ち込み」「オムツ替えスペース」「子供が騒いでも平気な雰囲気か」。

出力JSON:
{
  "summary": "子連れ判定（例：座敷あるが煙たいので注意 / ベビーカーOK）",
  "details": ["設備情報（椅子・トイレ）", "雰囲気（子供歓迎か）", "注意点"],
  "score": number (子連れ適正度: 0-100)
}`

const scorePrompt = `あなたは「老舗鑑定の達人」です。
以下の店舗情報と口コミをもとに、この店がどれくらい「老舗（Shinise）」としての価値があるかを定性的に評価し、JSON形式で回答してください。
※ 本日は {{.Today}} です。最新の情報を使って調査してください。

【判定基準】
- 単なる営業年数だけでなく、「語られ方」を重視する。
- 「地元で愛されている」「昭和の雰囲気」「代々受け継がれる味」「看板娘/名物店主」などのナラティブな要素を高く評価する。
- スコアは0〜100点。80点以上は「認定老舗」。
- **創業年はWEB検索で必ず調査してください**。見つからない場合は「不明」としてください。
- **食べログの点数（3.00〜5.00）も調査してください**。

【入力情報】
店名: {{.Name}}
住所: {{orDefault "不明" .Address}}
ジャンル: {{orDefault "不明" .Types}}
口コミ要約: {{orDefault "なし" .ReviewText}}

【出力JSONフォーマット】
{
  "score": number,
  "reasoning": "なぜそのスコアなのか、具体的なエピソードや雰囲気に触れて100文字程度で解説",
  "short_summary": "検索結果カードに表示する、情感あふれるキャッチコピー（20文字以内）",
  "is_shinise": boolean,
  "founding_year": "創業年（例: 1965年創業）。不明な場合は『不明』と記載",
  "tabelog_rating": number // 食べログの点数。見つからない場合は 0
}`

const guidePrompt = `あなたは「老舗の魅力を伝えるガイド」です。
以下の店舗情報と口コミをもとに、この店の魅力を解説するコンテンツを作成してください。JSON形式で回答してください。
※ 本日は {{.Today}} です。WEB検索を活用し、最新の情報（営業状況・メニュー・口コミ等）を反映してください。

【重要: 以下の情報を必ず検索して含めてください】
1. **食べログのURL**:
   - 「{{.Name}} {{.AddressArea}} 食べログ」で検索し、**店名と住所が一致する確実なURL**のみを取得してください。
   - 別の支店や同名の他店と間違えないよう注意してください。
2. **喫煙・禁煙情報**: 「全面喫煙可」「分煙」「完全禁煙」など。不明な場合は「不明」。

【入力情報】
店名: {{.Name}}
住所: {{orDefault "不明" .Address}}
ジャンル: {{orDefault "不明" .Types}}
口コミ要約: {{orDefault "なし" .ReviewText}}

【記述のトーン】
- 丁寧語（〜です、〜ます）を基本とし、少し落ち着いた、教養あるガイドのような口調で記述してください。
- 読者が「行ってみたい」と思えるような、情緒的かつ具体的な表現を心がけてください。

【出力JSONフォーマット】
{
  "history_background": "この店の歴史や背景について。創業年やエピソードがあれば盛り込んでください（150文字程度）",
  "recommended_points": "絶対に食べるべき一品や、見るべき建築・内装のポイント（100文字程度）",
  "atmosphere": "店内の雰囲気、客層、過ごし方など（50文字程度）",
  "best_time_to_visit": "おすすめの訪問時間帯や混雑状況の推測（30文字程度）",
  "tabelog_url": "https://tabelog.com/...",
  "smoking_status": "全面喫煙可 / 完全禁煙 / 分煙 / 不明"
}`

const candidatesPrompt = `{{if .Adventure}}あなたの任務は、指定されたエリア（{{.Area}}駅周辺）にある**「知る人ぞ知る隠れた名店（穴場）」**をトップ10抽出し、リストを作成することです。
※ 本日は {{.Today}} です。WEB検索を活用し、最新の情報を参照してください。

【検索条件】
- エリア: {{.Area}}駅 周辺
- カテゴリ: {{.Genre}}
- **ターゲット:**
    - 食べログの点数が**そこまで高くなくても（3.0〜3.5程度）**、地元の人に愛されている店。
    - 観光客があまり行かない、路地裏や目立たない場所にある店。
    - 「入りにくいが味は本物」「常連が多い」「昭和レトロな雰囲気」などの特徴がある店。
- 除外: チェーン店、誰でも知っている超有名店、観光ガイドのトップに出るような店。

【重要: WEB検索でリアルな評判を確認】
- 「{{.Area}} 穴場 グルメ」「{{.Area}} 地元民 おすすめ」などで検索し、ブログやSNSの声を参考にしてください。
- **点数が高い順である必要はありません。**「発見する喜び」がある店を優先してください。
- 食べログ点数が見つからない場合は 3.0、創業年が見つからない場合は「不明」としてください。

【出力形式: JSON】
{
  "candidates": [
    {
      "name": "店名",
      "tabelog_rating": 3.25, // 数値
      "reasoning": "なぜ穴場なのか（例：路地裏の看板のない名店、常連だけで満席、等）",
      "founding_year": "1982年"
    },
    ...
  ]
}{{else}}あなたの任務は、指定されたエリア（{{.Area}}駅周辺）にある**「食べログの点数が高い人気店」**をトップ10抽出し、リストを作成することです。
※ 本日は {{.Today}} です。WEB検索を活用し、最新の食べログランキングや評価を参照してください。

【検索条件】
- エリア: {{.Area}}駅 周辺
- カテゴリ: {{.Genre}}
- 必須条件:
    1. **食べログで高評価（3.1以上が望ましい）**であること。
    2. **創業年を必ず調査**すること（老舗でなくても構いませんが、歴史がある店を優先）。
    3. **チェーン店は除外**（個店を優先）。

【重要: WEB検索で最新の正確な数値を確認】
- 各店舗「店名 食べログ」で検索し、**検索結果のタイトルやスニペットに表示される最新の点数（例: 3.58）**を必ず取得してください。
- **点数が高い順に（降順で）トップ10を並べてください。**
- 食べログ点数が見つからない場合は 3.0、創業年が見つからない場合は「不明」としてください。

【出力形式: JSON】
{
  "candidates": [
    {
      "name": "店名",
      "tabelog_rating": 3.58, // 数値で記述
      "reasoning": "なぜ選出したか、その店の魅力を30文字程度で（例：創業50年の秘伝のタレが人気）",
      "founding_year": "1978年" // 創業年を記載
    },
    ...
  ]
}{{end}}`

const reviewAnalysisPrompt = `あなたは「辛口のレビュー分析官」です。
以下の店舗（{{.Name}}）の口コミを分析し、サクラ（やらせ）の可能性と、隠れたネガティブな真実を暴き出してください。
JSON形式で回答してください。

【分析観点】
1. **サクラ検知**:
   - 具体的でない絶賛、同じようなフレーズの多用、投稿日が偏っている、などの特徴がないか。
   - 「店員さんが親切」「コスパ最高」など、当たり障りのない短文ばかりでないか。
2. **ネガティブ抽出**:
   - 「遅い」「汚い」「味が濃い」「接客が悪い」など、マイナス意見を容赦なく抽出してください。
3. **実態の要約**:
   - 良い点だけでなく、悪い点も含めた「その店のリアルな実態」を公平かつ少し辛口にまとめてください。

【入力口コミ】
{{.ReviewText}}

【出力JSON】
{
  "is_suspicious": boolean, // サクラの疑いがあるか
  "suspicion_level": "low" | "medium" | "high", // 疑いの強さ
  "suspicion_reason": "サクラを疑う理由（なければ『特になし』）",
  "negative_points": ["ネガティブな点1", "ネガティブな点2"],
  "reality_summary": "辛口の要約（100文字程度）"
}`

const illustrationPrompt = `Draw an artistic, hand-drawn style illustration map of a walking course in {{.Station}}, Japan.
Highlight these shops: {{join ", " .Shops}}.
The style should be a "Tabi no Shiori" (Travel Guidebook) aesthetic.
Use warm watercolor textures, soft pastel colors, and a golden/premium feel.
The map should be visually pleasing, cute but elegant.
White background with rough paper texture edges.`
