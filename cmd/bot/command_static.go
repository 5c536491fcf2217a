package main

import tele "gopkg.in/telebot.v3"

const textStart = `<b>Gift code redeemer</b>

/run [n|all] - redeem every unredeemed code, optionally sampled
/expired - check active codes with the default player
/redeem &lt;player_id&gt; - redeem for one player
/status [task_id] - show the running or a given task

/players - list subscribed players
/add &lt;player_id&gt; - subscribe a player
/remove &lt;player_id&gt; - unsubscribe a player

/codes - list gift codes
/fetch - look for new gift codes
/deactivate &lt;code&gt; - mark a code inactive`

func commandStart(c tele.Context) error {
	return c.Send(textStart, &tele.SendOptions{ParseMode: tele.ModeHTML})
}
