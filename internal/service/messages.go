package service

// User-facing messages. They are shown verbatim by the pages and API clients.
const (
	MsgFormInvalid = "フォームの入力が不正です"

	MsgUsernameRequired  = "ユーザー名は必須です"
	MsgSignupEmailFormat = "メールアドレスの形式が正しくありません"
	MsgEmailInvalid      = "有効なメールアドレスを入力してください"
	MsgRoleInvalid       = "ロールは'user'または'admin'を選択してください"
	MsgPasswordTooShort  = "パスワードは%d文字以上で入力してください"
	MsgPasswordMix       = "パスワードは英字と数字を両方含めてください"
	MsgPasswordTooLong   = "パスワードは72バイト以内で入力してください"

	MsgEmailTaken    = "このメールアドレスは既に登録されています"
	MsgUsernameTaken = "このユーザー名は既に登録されています"

	MsgSignupFailed = "ユーザー登録に失敗しました"

	MsgUserNotFound      = "ユーザーが見つかりません"
	MsgPasswordIncorrect = "パスワードが正しくありません"

	MsgLoginInfoUnavailable     = "ログイン情報が取得できませんでした"
	MsgCurrentPasswordRequired  = "現在のパスワードを入力してください"
	MsgCurrentPasswordIncorrect = "現在のパスワードが正しくありません"
	MsgUpdateFailed             = "ユーザー情報の更新に失敗しました"

	MsgNotSignedIn          = "未ログインです"
	MsgNotAdmin             = "管理者権限がありません"
	MsgUserCountFailed      = "ユーザー数の取得に失敗しました"
	MsgUserListFailed       = "ユーザーの取得に失敗しました"
	MsgSessionInvalid       = "ログインセッションが無効です。再度ログインしてください。"
	MsgDeleteFailed         = "アカウントの削除に失敗しました。時間をおいて再度お試しください。"
	MsgSystemError          = "システムエラーが発生しました。管理者にお問い合わせください。"
	MsgProviderEmailMissing = "外部サービスからメールアドレスを取得できませんでした"
)
