package http

const walletConnectTemplate = "wallet_connect"

// walletConnectPage asks an injected browser wallet to sign the nonce and
// reports the signature to /verify. Without a wallet it falls back to the
// pairing URI.
const walletConnectPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Connect Wallet</title></head>
<body>
<script>
  (async () => {
    const userID = {{.UserID}};
    const message = {{.Message}};
    const pairingURI = {{.URI}};

    if (!window.ethereum) {
      window.location.href = pairingURI;
      throw new Error("Please install MetaMask");
    }

    try {
      const accounts = await window.ethereum.request({ method: "eth_requestAccounts" });
      const signature = await window.ethereum.request({
        method: "personal_sign",
        params: [message, accounts[0]],
      });

      window.location.href = "/verify?address=" + encodeURIComponent(accounts[0]) +
        "&signature=" + encodeURIComponent(signature) + "&id=" + userID;
    } catch (error) {
      console.error("Error:", error);
      alert("Signature required for login");
      window.location.href = "/verify?id=" + userID;
    }
  })();
</script>
</body>
</html>
`
